package coarsetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_IsRecent(t *testing.T) {
	diff := time.Since(Now())
	assert.Less(t, diff, 4*Resolution)
	assert.GreaterOrEqual(t, diff, -Resolution)
}

func TestNow_Advances(t *testing.T) {
	first := Now()
	assert.Eventually(t, func() bool {
		return Now().After(first)
	}, 20*Resolution, Resolution/5)
}

func TestSince_NeverNegative(t *testing.T) {
	assert.Equal(t, time.Duration(0), Since(time.Now().Add(time.Hour)))
	assert.GreaterOrEqual(t, Since(time.Now().Add(-time.Second)), 900*time.Millisecond)
}

// BenchmarkTimeNow/time-8         	35926340	         32.82 ns/op	       0 B/op	       0 allocs/op
// BenchmarkTimeNow/coarsetime-8   	609668066	         1.950 ns/op	       0 B/op	       0 allocs/op
func BenchmarkTimeNow(b *testing.B) {
	var t time.Time

	b.Run("time", func(b *testing.B) {
		for b.Loop() {
			t = time.Now()
		}
	})

	b.Run("coarsetime", func(b *testing.B) {
		for b.Loop() {
			t = Now()
		}
	})

	_ = t
}
