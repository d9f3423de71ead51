// pkg/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix    = "SHIPNETSIM_"
	configEnvVar = "CONFIG_PATH"
)

// Loader assembles a Config from layered sources.
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	envPrefix   string
}

// NewLoader creates a configuration loader with the given options applied.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"config.yaml",
			"config/config.yaml",
			"/etc/shipnetsim/config.yaml",
		},
		envPrefix: envPrefix,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths overrides the list of paths searched for a config file.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// WithEnvPrefix overrides the environment variable prefix.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// Load builds a Config with priority, lowest first:
// 1. Defaults
// 2. Config file (yaml)
// 3. Environment variables
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadConfigFile(); err != nil {
		// A config file is optional; surface it but don't fail the load.
		fmt.Printf("Warning: %v\n", err)
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// loadDefaults seeds the koanf tree with built-in defaults.
func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		// App
		"app.name":        "shipnetsim",
		"app.version":     "1.0.0",
		"app.environment": "development",
		"app.debug":       false,

		// Broker
		"broker.host":                 "localhost",
		"broker.port":                 5672,
		"broker.username":             "guest",
		"broker.password":             "guest",
		"broker.vhost":                "/",
		"broker.exchange":             "CargoNetSim.Exchange",
		"broker.exchange_type":        "topic",
		"broker.command_queue":        "CargoNetSim.CommandQueue.ShipNetSim",
		"broker.command_routing_key":  "CargoNetSim.Command.ShipNetSim",
		"broker.response_queue":       "CargoNetSim.ResponseQueue.ShipNetSim",
		"broker.response_routing_key": "CargoNetSim.Response.ShipNetSim",
		"broker.connect_max_attempts": 5,
		"broker.connect_backoff":      5 * time.Second,
		"broker.publish_max_attempts": 3,
		"broker.publish_backoff":      1 * time.Second,
		"broker.poll_timeout":         100 * time.Millisecond,
		"broker.busy_poll_interval":   50 * time.Millisecond,
		"broker.service_name":        "ShipNetSim",

		// Simulation
		"simulation.default_time_step":    1.0 * float64(time.Second),
		"simulation.default_output_dir":   "",
		"simulation.plot_frequency":       0.0,
		"simulation.progress_emit_every":  1,

		// Log
		"log.level":       "info",
		"log.format":      "json",
		"log.output":      "stdout",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		// Metrics
		"metrics.enabled":   true,
		"metrics.port":      9090,
		"metrics.path":      "/metrics",
		"metrics.namespace": "shipnetsim",
		"metrics.subsystem": "",

		// Tracing
		"tracing.enabled":      false,
		"tracing.endpoint":     "localhost:4317",
		"tracing.service_name": "shipnetsim",
		"tracing.sample_rate":  0.1,

		// Cache (Redis, backs both the lock and the ShipsResults cache)
		"cache.enabled":     true,
		"cache.host":        "localhost",
		"cache.port":        6379,
		"cache.password":    "",
		"cache.db":          0,
		"cache.default_ttl": 5 * time.Minute,

		// Lock (single-instance gate)
		"lock.service_name": "shipnetsim",
		"lock.ttl":          30 * time.Second,
		"lock.renew_every":  10 * time.Second,

		// Audit
		"audit.enabled":      true,
		"audit.backend":      "stdout",
		"audit.buffer_size":  1000,
		"audit.flush_period": 5 * time.Second,

		// Retry
		"retry.max_attempts":       3,
		"retry.initial_backoff":    100 * time.Millisecond,
		"retry.max_backoff":        10 * time.Second,
		"retry.backoff_multiplier": 2.0,
	}

	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

// loadConfigFile loads an optional YAML config file.
func (l *Loader) loadConfigFile() error {
	if configPath := os.Getenv(configEnvVar); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return l.k.Load(file.Provider(configPath), yaml.Parser())
		}
	}

	for _, path := range l.configPaths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			continue
		}

		if _, err := os.Stat(absPath); err == nil {
			return l.k.Load(file.Provider(absPath), yaml.Parser())
		}
	}

	return fmt.Errorf("config file not found in paths: %v", l.configPaths)
}

// loadEnv overlays environment variables, e.g. SHIPNETSIM_BROKER_PORT -> broker.port.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(
				strings.TrimPrefix(s, l.envPrefix),
			),
			"_", ".",
		)
	}), nil)
}

// MustLoad loads the configuration or panics.
func MustLoad(opts ...LoaderOption) *Config {
	cfg, err := NewLoader(opts...).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Load is a convenience function using default loader settings.
func Load() (*Config, error) {
	return NewLoader().Load()
}

// LoadWithServiceDefaults loads configuration, then applies service-specific
// overrides where the loaded value still matches its zero-override default.
func LoadWithServiceDefaults(serviceName string, defaultBrokerPort int) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if cfg.Broker.Port == 5672 && defaultBrokerPort != 0 {
		cfg.Broker.Port = defaultBrokerPort
	}

	if cfg.App.Name == "shipnetsim" && serviceName != "" {
		cfg.App.Name = serviceName
	}

	return cfg, nil
}
