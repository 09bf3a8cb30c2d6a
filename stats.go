package kvwire

import (
	"sync/atomic"
	"time"
)

// ClientStats contains statistics about client and dispatcher operations.
// All fields are safe for concurrent access.
//
// For Prometheus integration, see Collector:
//   - Counters: Gets, GetHits, Sets, Errors, Commands
//   - Counter: QueueWaitTimeNs (derive average wait as QueueWaitTimeNs/Commands)
type ClientStats struct {
	Gets            uint64 // Total Get operations
	GetHits         uint64 // Get operations that found the key
	Sets            uint64 // Total Set operations
	Errors          uint64 // Total errors across all operations
	Commands        uint64 // Commands taken off the queue by the dispatcher
	FatalErrors     uint64 // Errors that stopped the dispatcher
	QueueWaitTimeNs uint64 // Total nanoseconds commands spent queued
}

// clientStatsCollector provides internal methods for updating client stats.
// Shared by a Client and its Dispatcher.
type clientStatsCollector struct {
	stats ClientStats
}

func newClientStatsCollector() *clientStatsCollector {
	return &clientStatsCollector{}
}

func (c *clientStatsCollector) recordGet(found bool) {
	atomic.AddUint64(&c.stats.Gets, 1)
	if found {
		atomic.AddUint64(&c.stats.GetHits, 1)
	}
}

func (c *clientStatsCollector) recordSet() {
	atomic.AddUint64(&c.stats.Sets, 1)
}

func (c *clientStatsCollector) recordError() {
	atomic.AddUint64(&c.stats.Errors, 1)
}

func (c *clientStatsCollector) recordCommand(queueWait time.Duration) {
	atomic.AddUint64(&c.stats.Commands, 1)
	atomic.AddUint64(&c.stats.QueueWaitTimeNs, uint64(queueWait.Nanoseconds()))
}

func (c *clientStatsCollector) recordFatal() {
	atomic.AddUint64(&c.stats.FatalErrors, 1)
}

func (c *clientStatsCollector) snapshot() ClientStats {
	return ClientStats{
		Gets:            atomic.LoadUint64(&c.stats.Gets),
		GetHits:         atomic.LoadUint64(&c.stats.GetHits),
		Sets:            atomic.LoadUint64(&c.stats.Sets),
		Errors:          atomic.LoadUint64(&c.stats.Errors),
		Commands:        atomic.LoadUint64(&c.stats.Commands),
		FatalErrors:     atomic.LoadUint64(&c.stats.FatalErrors),
		QueueWaitTimeNs: atomic.LoadUint64(&c.stats.QueueWaitTimeNs),
	}
}
