package kvwire

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticStats ClientStats

func (s staticStats) Stats() ClientStats { return ClientStats(s) }

type staticStatsWithBreaker struct {
	staticStats
	state gobreaker.State
}

func (s staticStatsWithBreaker) CircuitBreakerState() gobreaker.State { return s.state }

func TestCollector(t *testing.T) {
	source := staticStats{
		Gets:            10,
		GetHits:         7,
		Sets:            4,
		Errors:          2,
		Commands:        14,
		FatalErrors:     1,
		QueueWaitTimeNs: 1_500_000_000,
	}
	c := NewCollector("cache", source)

	expected := `
# HELP kvwire_operations_total Total number of client operations
# TYPE kvwire_operations_total counter
kvwire_operations_total{client="cache",operation="get"} 10
kvwire_operations_total{client="cache",operation="set"} 4
# HELP kvwire_get_hits_total Get operations that found the key
# TYPE kvwire_get_hits_total counter
kvwire_get_hits_total{client="cache"} 7
# HELP kvwire_dispatcher_queue_wait_seconds_total Total time commands spent in the request queue
# TYPE kvwire_dispatcher_queue_wait_seconds_total counter
kvwire_dispatcher_queue_wait_seconds_total{client="cache"} 1.5
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"kvwire_operations_total",
		"kvwire_get_hits_total",
		"kvwire_dispatcher_queue_wait_seconds_total",
	)
	require.NoError(t, err)

	// No circuit breaker state without a CircuitBreakerState method.
	assert.Equal(t, 7, testutil.CollectAndCount(c))
}

func TestCollector_CircuitBreakerState(t *testing.T) {
	c := NewCollector("cache", staticStatsWithBreaker{state: gobreaker.StateOpen})

	expected := `
# HELP kvwire_circuit_breaker_state Circuit breaker state (0=closed, 1=half-open, 2=open)
# TYPE kvwire_circuit_breaker_state gauge
kvwire_circuit_breaker_state{client="cache"} 2
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected), "kvwire_circuit_breaker_state")
	require.NoError(t, err)
	assert.Equal(t, 8, testutil.CollectAndCount(c))
}

func TestCollector_Client(t *testing.T) {
	client, _ := newTestClient(t, Config{})
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, Item{Key: "k", Value: []byte("v")}))
	_, err := client.Get(ctx, "k")
	require.NoError(t, err)

	registry := prometheus.NewPedanticRegistry()
	require.NoError(t, registry.Register(NewCollector("test", client)))

	count, err := testutil.GatherAndCount(registry, "kvwire_dispatcher_commands_total", "kvwire_circuit_breaker_state")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	expected := `
# HELP kvwire_dispatcher_commands_total Commands taken off the queue by the dispatcher
# TYPE kvwire_dispatcher_commands_total counter
kvwire_dispatcher_commands_total{client="test"} 2
`
	err = testutil.GatherAndCompare(registry, strings.NewReader(expected), "kvwire_dispatcher_commands_total")
	assert.NoError(t, err)
}
