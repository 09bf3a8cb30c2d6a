package main

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pior/kvwire"
	"github.com/pior/kvwire/internal/store"
)

// EnvPrefix is the prefix of environment variables read by the CLI.
// KVWIRE_QUEUE_SIZE=64 sets queue_size.
const EnvPrefix = "KVWIRE_"

// Config is the merged CLI configuration.
//
// Sources are applied in order, later ones overriding earlier ones:
// defaults, the --config file (YAML or TOML), KVWIRE_* environment
// variables, then flags given on the command line.
type Config struct {
	// Client side
	Addr           string        `koanf:"addr"`
	QueueSize      int           `koanf:"queue_size"`
	Timeout        time.Duration `koanf:"timeout"`
	DialTimeout    time.Duration `koanf:"dial_timeout"`
	CircuitBreaker bool          `koanf:"circuit_breaker"`

	// Server side
	Listen      string `koanf:"listen"`
	Shards      int    `koanf:"shards"`
	MetricsAddr string `koanf:"metrics_addr"`

	// Logging
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
}

func defaults() map[string]any {
	return map[string]any{
		"addr":            "127.0.0.1:6380",
		"queue_size":      kvwire.DefaultQueueSize,
		"timeout":         "5s",
		"dial_timeout":    "2s",
		"circuit_breaker": false,
		"listen":          "127.0.0.1:6380",
		"shards":          store.DefaultShards,
		"metrics_addr":    "",
		"log_level":       "info",
		"log_format":      "console",
	}
}

// flagKeys maps flag names to config keys. Only flags present on the
// command line override lower layers.
var flagKeys = map[string]string{
	"addr":            "addr",
	"queue-size":      "queue_size",
	"timeout":         "timeout",
	"dial-timeout":    "dial_timeout",
	"circuit-breaker": "circuit_breaker",
	"listen":          "listen",
	"shards":          "shards",
	"metrics-addr":    "metrics_addr",
	"log-level":       "log_level",
	"log-format":      "log_format",
}

// loadConfig merges every configuration source for the running command.
func loadConfig(c *cli.Context) (Config, error) {
	l := newLoader(EnvPrefix)

	if err := l.loadMap(defaults()); err != nil {
		return Config{}, err
	}
	if path := c.String("config"); path != "" {
		if err := l.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := l.loadEnv(); err != nil {
		return Config{}, err
	}
	if err := l.loadMap(flagOverrides(c)); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func flagOverrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for name, key := range flagKeys {
		if c.IsSet(name) {
			out[key] = c.Value(name)
		}
	}
	return out
}

func (c Config) validate() error {
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must not be negative, got %d", c.QueueSize)
	}
	if c.Shards < 0 {
		return fmt.Errorf("shards must not be negative, got %d", c.Shards)
	}
	if c.Timeout < 0 || c.DialTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}

type loader struct {
	k         *koanf.Koanf
	envPrefix string
}

func newLoader(envPrefix string) *loader {
	return &loader{
		k:         koanf.New("."),
		envPrefix: envPrefix,
	}
}

// loadFile loads a YAML or TOML file, chosen by extension.
func (l *loader) loadFile(path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".toml":
		parser = tomlParser{}
	default:
		return fmt.Errorf("config file %s: unsupported format, use .yaml, .yml or .toml", path)
	}

	if err := l.k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	return nil
}

// loadEnv loads KVWIRE_* variables: KVWIRE_DIAL_TIMEOUT -> dial_timeout.
func (l *loader) loadEnv() error {
	transform := func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	}

	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

func (l *loader) loadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

var errReadBytesNotSupported = errors.New("map provider does not support ReadBytes")

// mapProvider is a koanf.Provider serving an in-memory map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errReadBytesNotSupported
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}

// tomlParser is a koanf.Parser backed by BurntSushi/toml.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	out := make(map[string]any)
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
