// pkg/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the top-level configuration structure for the command server.
type Config struct {
	App        AppConfig        `koanf:"app"`
	Broker     BrokerConfig     `koanf:"broker"`
	Simulation SimulationConfig `koanf:"simulation"`
	Log        LogConfig        `koanf:"log"`
	Metrics    MetricsConfig    `koanf:"metrics"`
	Tracing    TracingConfig    `koanf:"tracing"`
	Cache      CacheConfig      `koanf:"cache"`
	Lock       LockConfig       `koanf:"lock"`
	Audit      AuditConfig      `koanf:"audit"`
	Retry      RetryConfig      `koanf:"retry"`
}

// AppConfig holds general application identity settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// BrokerConfig holds the AMQP broker connection and topology settings.
type BrokerConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	VHost    string `koanf:"vhost"`

	Exchange         string `koanf:"exchange"`
	ExchangeType     string `koanf:"exchange_type"`
	CommandQueue     string `koanf:"command_queue"`
	CommandRoutingKey string `koanf:"command_routing_key"`
	ResponseQueue     string `koanf:"response_queue"`
	ResponseRoutingKey string `koanf:"response_routing_key"`

	ConnectMaxAttempts int           `koanf:"connect_max_attempts"`
	ConnectBackoff     time.Duration `koanf:"connect_backoff"`
	PublishMaxAttempts int           `koanf:"publish_max_attempts"`
	PublishBackoff     time.Duration `koanf:"publish_backoff"`
	PollTimeout        time.Duration `koanf:"poll_timeout"`
	BusyPollInterval   time.Duration `koanf:"busy_poll_interval"`

	ServiceName string `koanf:"service_name"` // "host" field stamped on outbound events
}

// Address returns the broker's host:port pair.
func (b BrokerConfig) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// URL returns the amqp:// connection string.
func (b BrokerConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s%s", b.Username, b.Password, b.Address(), b.VHost)
}

// SimulationConfig holds defaults applied when a world's simulator is created.
type SimulationConfig struct {
	DefaultTimeStep   time.Duration `koanf:"default_time_step"`
	DefaultOutputDir  string        `koanf:"default_output_dir"`
	PlotFrequency     float64       `koanf:"plot_frequency"` // seconds; 0 disables plot-update events
	ProgressEmitEvery int           `koanf:"progress_emit_every"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// CacheConfig holds the Redis connection used for both the single-instance
// lock and the best-effort ShipsResults cache.
type CacheConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	DefaultTTL time.Duration `koanf:"default_ttl"`
}

// Address returns the cache's host:port pair.
func (c CacheConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LockConfig holds the single-instance lock settings.
type LockConfig struct {
	ServiceName string        `koanf:"service_name"`
	TTL         time.Duration `koanf:"ttl"`
	RenewEvery  time.Duration `koanf:"renew_every"`
}

// AuditConfig holds command-audit-trail settings.
type AuditConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Backend     string        `koanf:"backend"` // stdout, file
	FilePath    string        `koanf:"file_path"`
	BufferSize  int           `koanf:"buffer_size"`
	FlushPeriod time.Duration `koanf:"flush_period"`
}

// RetryConfig holds generic retry/back-off defaults.
type RetryConfig struct {
	MaxAttempts       int           `koanf:"max_attempts"`
	InitialBackoff    time.Duration `koanf:"initial_backoff"`
	MaxBackoff        time.Duration `koanf:"max_backoff"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
}

// Validate checks invariants on the loaded configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Sprintf("broker.port must be between 1 and 65535, got %d", c.Broker.Port))
	}

	if c.Simulation.DefaultTimeStep <= 0 {
		errs = append(errs, "simulation.default_time_step must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment reports whether the app is running in a development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "dev"
}

// IsProduction reports whether the app is running in a production environment.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production" || c.App.Environment == "prod"
}
