package main

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pior/kvwire"
)

// Build information, set via ldflags.
var Version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "kvwire",
		Usage:   "GET/SET over a single multiplexed connection",
		Version: Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			serveCommand(),
			getCommand(),
			setCommand(),
			benchCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (.yaml, .yml or .toml)",
		},
		&cli.StringFlag{
			Name:    "addr",
			Aliases: []string{"a"},
			Usage:   "Server address to connect to",
		},
		&cli.IntFlag{
			Name:  "queue-size",
			Usage: "Request queue capacity",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Deadline for each request/response exchange (0 = none)",
		},
		&cli.DurationFlag{
			Name:  "dial-timeout",
			Usage: "Deadline for establishing the connection",
		},
		&cli.BoolFlag{
			Name:  "circuit-breaker",
			Usage: "Guard the connection with a circuit breaker",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: trace, debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: console or json",
		},
	}
}

// setup loads the configuration and builds the logger for a command.
func setup(c *cli.Context) (Config, zerolog.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return Config{}, zerolog.Nop(), err
	}

	logger, err := newLogger(c.App.ErrWriter, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return Config{}, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func clientConfig(cfg Config, logger zerolog.Logger) kvwire.Config {
	config := kvwire.Config{
		QueueSize: cfg.QueueSize,
		Timeout:   cfg.Timeout,
		Dialer:    &net.Dialer{Timeout: cfg.DialTimeout},
		Logger:    logger,
	}
	if cfg.CircuitBreaker {
		config.NewCircuitBreaker = kvwire.NewCircuitBreakerConfig(1, 10*time.Second, 5*time.Second)
	}
	return config
}

func dial(ctx context.Context, cfg Config, logger zerolog.Logger) (*kvwire.Client, error) {
	return kvwire.Dial(ctx, cfg.Addr, clientConfig(cfg, logger))
}
