package kvwire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// StatsSource is anything that can report ClientStats, typically a *Client.
type StatsSource interface {
	Stats() ClientStats
}

// Collector exports ClientStats as Prometheus metrics. Values are read from
// the source at scrape time.
//
//	registry.MustRegister(kvwire.NewCollector("cache", client))
type Collector struct {
	source StatsSource

	operations   *prometheus.Desc
	getHits      *prometheus.Desc
	errors       *prometheus.Desc
	commands     *prometheus.Desc
	fatalErrors  *prometheus.Desc
	queueWait    *prometheus.Desc
	circuitState *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source. name becomes the "client"
// label on every metric.
func NewCollector(name string, source StatsSource) *Collector {
	labels := prometheus.Labels{"client": name}

	return &Collector{
		source: source,
		operations: prometheus.NewDesc(
			"kvwire_operations_total",
			"Total number of client operations",
			[]string{"operation"}, labels,
		),
		getHits: prometheus.NewDesc(
			"kvwire_get_hits_total",
			"Get operations that found the key",
			nil, labels,
		),
		errors: prometheus.NewDesc(
			"kvwire_errors_total",
			"Total errors across all operations",
			nil, labels,
		),
		commands: prometheus.NewDesc(
			"kvwire_dispatcher_commands_total",
			"Commands taken off the queue by the dispatcher",
			nil, labels,
		),
		fatalErrors: prometheus.NewDesc(
			"kvwire_dispatcher_fatal_errors_total",
			"Connection errors that stopped the dispatcher",
			nil, labels,
		),
		queueWait: prometheus.NewDesc(
			"kvwire_dispatcher_queue_wait_seconds_total",
			"Total time commands spent in the request queue",
			nil, labels,
		),
		circuitState: prometheus.NewDesc(
			"kvwire_circuit_breaker_state",
			"Circuit breaker state (0=closed, 1=half-open, 2=open)",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.getHits
	ch <- c.errors
	ch <- c.commands
	ch <- c.fatalErrors
	ch <- c.queueWait
	ch <- c.circuitState
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(s.Gets), "get")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(s.Sets), "set")
	ch <- prometheus.MustNewConstMetric(c.getHits, prometheus.CounterValue, float64(s.GetHits))
	ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(s.Errors))
	ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(s.Commands))
	ch <- prometheus.MustNewConstMetric(c.fatalErrors, prometheus.CounterValue, float64(s.FatalErrors))
	ch <- prometheus.MustNewConstMetric(c.queueWait, prometheus.CounterValue, float64(s.QueueWaitTimeNs)/1e9)

	if cb, ok := c.source.(interface{ CircuitBreakerState() gobreaker.State }); ok {
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, float64(cb.CircuitBreakerState()))
	}
}
