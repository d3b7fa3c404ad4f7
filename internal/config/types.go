package config

import "time"

// HealthMode selects the health snapshot provider
type HealthMode string

const (
	HealthModeStatic  HealthMode = "static"
	HealthModeMonitor HealthMode = "monitor"
)

// Config represents the main configuration structure
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Backends BackendsConfig `mapstructure:"backends"`
	Health   HealthConfig   `mapstructure:"health"`
	Server   ServerConfig   `mapstructure:"server"`
}

// BackendsConfig holds the per-kind enable toggles.
// Every backend instance of a kind shares its kind's toggle.
type BackendsConfig struct {
	PrimaryEnabled  bool `mapstructure:"primary_enabled"`
	FallbackEnabled bool `mapstructure:"fallback_enabled"`
}

// HealthConfig configures the health snapshot provider
type HealthConfig struct {
	Mode              HealthMode           `mapstructure:"mode"`
	ProbeInterval     time.Duration        `mapstructure:"probe_interval"`
	ProbeTimeout      time.Duration        `mapstructure:"probe_timeout"`
	EWMAAlpha         float64              `mapstructure:"ewma_alpha"`
	MaxFailureRate    float64              `mapstructure:"max_failure_rate"`
	StatusLogInterval time.Duration        `mapstructure:"status_log_interval"`
	CircuitBreaker    CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryTimeout   time.Duration `mapstructure:"recovery_timeout"`
	HalfOpenSuccesses int           `mapstructure:"half_open_successes"`
}

// ServerConfig configures the control service started by `serve`
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	HistorySize   int           `mapstructure:"history_size"`
	HistoryTTL    time.Duration `mapstructure:"history_ttl"`
	EventInterval time.Duration `mapstructure:"event_interval"`
}

// Default values
const (
	DefaultConfigPath        = "gold-dust-vpn.toml"
	DefaultEnvPrefix         = "GOLDDUST"
	DefaultLogLevel          = "info"
	DefaultPrimaryEnabled    = true
	DefaultFallbackEnabled   = true
	DefaultHealthMode        = HealthModeStatic
	DefaultProbeInterval     = 10 * time.Second
	DefaultProbeTimeout      = 2 * time.Second
	DefaultEWMAAlpha         = 0.3
	DefaultMaxFailureRate    = 0.5
	DefaultStatusLogInterval = 30 * time.Second
	DefaultFailureThreshold  = 3
	DefaultRecoveryTimeout   = 30 * time.Second
	DefaultHalfOpenSuccesses = 2
	DefaultServerHost        = "127.0.0.1"
	DefaultServerPort        = 7070
	DefaultHistorySize       = 256
	DefaultHistoryTTL        = 10 * time.Minute
	DefaultEventInterval     = 5 * time.Second
)

// Default returns a configuration populated with default values
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Backends: BackendsConfig{
			PrimaryEnabled:  DefaultPrimaryEnabled,
			FallbackEnabled: DefaultFallbackEnabled,
		},
		Health: HealthConfig{
			Mode:              DefaultHealthMode,
			ProbeInterval:     DefaultProbeInterval,
			ProbeTimeout:      DefaultProbeTimeout,
			EWMAAlpha:         DefaultEWMAAlpha,
			MaxFailureRate:    DefaultMaxFailureRate,
			StatusLogInterval: DefaultStatusLogInterval,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:  DefaultFailureThreshold,
				RecoveryTimeout:   DefaultRecoveryTimeout,
				HalfOpenSuccesses: DefaultHalfOpenSuccesses,
			},
		},
		Server: ServerConfig{
			Host:          DefaultServerHost,
			Port:          DefaultServerPort,
			HistorySize:   DefaultHistorySize,
			HistoryTTL:    DefaultHistoryTTL,
			EventInterval: DefaultEventInterval,
		},
	}
}

// IsMonitorEnabled returns true if the live health monitor should be used
func (c *Config) IsMonitorEnabled() bool {
	return c.Health.Mode == HealthModeMonitor
}
