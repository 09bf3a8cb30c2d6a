package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pior/kvwire"
)

type OperationType string

const (
	CacheHit  OperationType = "get-hit"
	CacheMiss OperationType = "get-miss"
	Store     OperationType = "set"
	Mixed     OperationType = "mixed"
	All       OperationType = "all"
)

type BenchmarkResult struct {
	Operation    OperationType
	Duration     time.Duration
	TotalOps     int64
	Successes    int64
	Failures     int64
	AvgLatency   time.Duration
	OpsPerSecond float64
	Correctness  bool
	ErrorMessage string
}

type benchOptions struct {
	duration    time.Duration
	concurrency int
	keys        int
	value       []byte
}

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Load a server through one client connection",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "operation",
				Usage: "get-hit, get-miss, set, mixed or all",
				Value: string(All),
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Duration of each benchmark",
				Value: 5 * time.Second,
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of goroutines sharing the client",
				Value: 8,
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "Size of the key space",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "value-size",
				Usage: "Size of stored values in bytes",
				Value: 100,
			},
		},
		Action: runBench,
	}
}

func runBench(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	opts := benchOptions{
		duration:    c.Duration("duration"),
		concurrency: max(c.Int("concurrency"), 1),
		keys:        max(c.Int("keys"), 1),
		value:       bytes.Repeat([]byte("v"), max(c.Int("value-size"), 0)),
	}

	client, err := dial(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	out := c.App.Writer
	fmt.Fprintf(out, "kvwire benchmark against %s\n", client.Addr())
	fmt.Fprintf(out, "Duration: %v, Concurrency: %d, Keys: %d, Value size: %d\n\n",
		opts.duration, opts.concurrency, opts.keys, len(opts.value))

	operation := OperationType(c.String("operation"))
	operations := []OperationType{operation}
	if operation == All {
		operations = []OperationType{Store, CacheHit, CacheMiss, Mixed}
	}

	for _, op := range operations {
		result := runSingleOperation(c.Context, client, op, opts)
		printResult(out, result)
		if result.ErrorMessage != "" && result.TotalOps == 0 {
			return fmt.Errorf("%s: %s", op, result.ErrorMessage)
		}
	}

	stats := client.Stats()
	fmt.Fprintf(out, "Client: gets=%d hits=%d sets=%d errors=%d commands=%d\n",
		stats.Gets, stats.GetHits, stats.Sets, stats.Errors, stats.Commands)
	if stats.Commands > 0 {
		fmt.Fprintf(out, "Avg queue wait: %v\n", time.Duration(stats.QueueWaitTimeNs/stats.Commands))
	}
	return nil
}

func benchKey(i int) string {
	return "bench:" + strconv.Itoa(i)
}

func runSingleOperation(ctx context.Context, client *kvwire.Client, op OperationType, opts benchOptions) *BenchmarkResult {
	var run func(worker int) (bool, error)

	switch op {
	case Store:
		run = func(int) (bool, error) {
			err := client.Set(ctx, kvwire.Item{Key: benchKey(rand.IntN(opts.keys)), Value: opts.value})
			return true, err
		}

	case CacheHit:
		// Seed the key space so every read hits.
		for i := range opts.keys {
			if err := client.Set(ctx, kvwire.Item{Key: benchKey(i), Value: opts.value}); err != nil {
				return &BenchmarkResult{Operation: op, ErrorMessage: fmt.Sprintf("seeding keys: %v", err)}
			}
		}
		run = func(int) (bool, error) {
			item, err := client.Get(ctx, benchKey(rand.IntN(opts.keys)))
			if err != nil {
				return true, err
			}
			return item.Found && bytes.Equal(item.Value, opts.value), nil
		}

	case CacheMiss:
		run = func(worker int) (bool, error) {
			item, err := client.Get(ctx, "bench:missing:"+strconv.Itoa(worker)+":"+strconv.Itoa(rand.Int()))
			return !item.Found, err
		}

	case Mixed:
		// 90% reads, 10% writes.
		run = func(int) (bool, error) {
			key := benchKey(rand.IntN(opts.keys))
			if rand.IntN(10) == 0 {
				return true, client.Set(ctx, kvwire.Item{Key: key, Value: opts.value})
			}
			item, err := client.Get(ctx, key)
			if err != nil || !item.Found {
				return true, err
			}
			return bytes.Equal(item.Value, opts.value), nil
		}

	default:
		return &BenchmarkResult{
			Operation:    op,
			ErrorMessage: fmt.Sprintf("Unknown operation: %s", op),
		}
	}

	return measure(op, opts, run)
}

func measure(op OperationType, opts benchOptions, run func(worker int) (bool, error)) *BenchmarkResult {
	var totalOps, successes, failures, totalLatency atomic.Int64
	var correct atomic.Bool
	correct.Store(true)

	var (
		errOnce  sync.Once
		firstErr error
	)

	start := time.Now()
	var wg sync.WaitGroup
	for worker := range opts.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for time.Since(start) < opts.duration {
				opStart := time.Now()
				ok, err := run(worker)
				totalLatency.Add(int64(time.Since(opStart)))
				totalOps.Add(1)

				if err != nil {
					failures.Add(1)
					errOnce.Do(func() { firstErr = err })
					continue
				}
				successes.Add(1)
				if !ok {
					correct.Store(false)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	result := &BenchmarkResult{
		Operation:   op,
		Duration:    elapsed,
		TotalOps:    totalOps.Load(),
		Successes:   successes.Load(),
		Failures:    failures.Load(),
		Correctness: correct.Load(),
	}
	if result.TotalOps > 0 {
		result.AvgLatency = time.Duration(totalLatency.Load() / result.TotalOps)
		result.OpsPerSecond = float64(result.TotalOps) / elapsed.Seconds()
	}
	if firstErr != nil {
		result.ErrorMessage = firstErr.Error()
	}
	return result
}

func printResult(w io.Writer, result *BenchmarkResult) {
	fmt.Fprintf(w, "Operation: %s\n", result.Operation)
	fmt.Fprintf(w, "Duration: %v\n", result.Duration)
	fmt.Fprintf(w, "Total Operations: %d\n", result.TotalOps)
	fmt.Fprintf(w, "Successes: %d\n", result.Successes)
	fmt.Fprintf(w, "Failures: %d\n", result.Failures)
	if result.TotalOps > 0 {
		fmt.Fprintf(w, "Success Rate: %.2f%%\n", float64(result.Successes)/float64(result.TotalOps)*100)
		fmt.Fprintf(w, "Ops/sec: %.2f\n", result.OpsPerSecond)
		fmt.Fprintf(w, "Avg Latency: %v\n", result.AvgLatency)
	}
	fmt.Fprintf(w, "Correctness: %t\n", result.Correctness)
	if result.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", result.ErrorMessage)
	}
	fmt.Fprintln(w)
}
