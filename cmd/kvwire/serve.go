package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pior/kvwire"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the in-memory reference server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen",
				Aliases: []string{"l"},
				Usage:   "Address to accept connections on",
			},
			&cli.IntFlag{
				Name:  "shards",
				Usage: "Number of lock shards in the store",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Address to expose Prometheus /metrics on (empty = disabled)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := kvwire.NewServer(kvwire.ServerConfig{Shards: cfg.Shards, Logger: logger})
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		metrics, err := startMetrics(cfg.MetricsAddr, srv, logger)
		if err != nil {
			ln.Close()
			return err
		}
		defer shutdownMetrics(metrics, logger)
	}

	err = srv.Serve(ctx, ln)
	if errors.Is(err, context.Canceled) {
		logger.Info().Msg("shutting down")
		return nil
	}
	return err
}

func newServerRegistry(srv *kvwire.Server) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kvwire_server_keys",
			Help: "Number of keys held by the server",
		}, func() float64 { return float64(srv.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "kvwire_server_sessions",
			Help: "Number of open client sessions",
		}, func() float64 { return float64(srv.Sessions()) }),
	)
	return registry
}

func startMetrics(addr string, srv *kvwire.Server, logger zerolog.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(newServerRegistry(srv), promhttp.HandlerOpts{}))

	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	logger.Info().Stringer("addr", ln.Addr()).Msg("serving metrics")
	return hs, nil
}

func shutdownMetrics(hs *http.Server, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := hs.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("metrics server shutdown")
	}
}
