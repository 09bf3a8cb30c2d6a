// Package coarsetime is a clock that trades precision for cost. The current
// time is refreshed every Resolution by a background goroutine, so Now is a
// single atomic load. It is used for queue-wait accounting on the dispatch
// hot path, where a 50ms error is irrelevant.
package coarsetime

import (
	"sync/atomic"
	"time"
)

// Resolution is the refresh interval of the clock.
const Resolution = 50 * time.Millisecond

var now atomic.Pointer[time.Time]

func init() {
	store(time.Now())

	ticker := time.NewTicker(Resolution)
	go func() {
		for t := range ticker.C {
			store(t)
		}
	}()
}

func store(t time.Time) {
	now.Store(&t)
}

// Now returns the current time, at most Resolution old.
func Now() time.Time {
	return *now.Load()
}

// Since returns the coarse time elapsed since t, never negative.
func Since(t time.Time) time.Duration {
	d := Now().Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
