package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Key names used by the first releases of the config file
const (
	legacyPrimaryKey  = "backends.oxen_enabled"
	legacyFallbackKey = "backends.tor_enabled"
)

// Load reads and parses the configuration file.
// Values may be overridden by GOLDDUST_* environment variables,
// e.g. GOLDDUST_BACKENDS_PRIMARY_ENABLED=false.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyLegacyKeys(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFiles loads KEY=VALUE pairs from .env files into the process environment.
// Missing files are skipped and variables already set are left untouched.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}

// newViper creates a viper instance with defaults and env binding
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("backends.primary_enabled", d.Backends.PrimaryEnabled)
	v.SetDefault("backends.fallback_enabled", d.Backends.FallbackEnabled)
	v.SetDefault("health.mode", string(d.Health.Mode))
	v.SetDefault("health.probe_interval", d.Health.ProbeInterval)
	v.SetDefault("health.probe_timeout", d.Health.ProbeTimeout)
	v.SetDefault("health.ewma_alpha", d.Health.EWMAAlpha)
	v.SetDefault("health.max_failure_rate", d.Health.MaxFailureRate)
	v.SetDefault("health.status_log_interval", d.Health.StatusLogInterval)
	v.SetDefault("health.circuit_breaker.failure_threshold", d.Health.CircuitBreaker.FailureThreshold)
	v.SetDefault("health.circuit_breaker.recovery_timeout", d.Health.CircuitBreaker.RecoveryTimeout)
	v.SetDefault("health.circuit_breaker.half_open_successes", d.Health.CircuitBreaker.HalfOpenSuccesses)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.history_size", d.Server.HistorySize)
	v.SetDefault("server.history_ttl", d.Server.HistoryTTL)
	v.SetDefault("server.event_interval", d.Server.EventInterval)
	return v
}

// applyLegacyKeys maps oxen_enabled/tor_enabled onto the current keys.
// The legacy value only replaces the built-in default: an explicit new key
// in the file or an environment override still wins.
func applyLegacyKeys(v *viper.Viper) {
	if !v.InConfig("backends.primary_enabled") && v.InConfig(legacyPrimaryKey) {
		v.SetDefault("backends.primary_enabled", v.GetBool(legacyPrimaryKey))
	}
	if !v.InConfig("backends.fallback_enabled") && v.InConfig(legacyFallbackKey) {
		v.SetDefault("backends.fallback_enabled", v.GetBool(legacyFallbackKey))
	}
}

// applyDefaults sets default values for fields left empty by overrides
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Health.Mode == "" {
		cfg.Health.Mode = DefaultHealthMode
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = DefaultServerHost
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Health.Mode = HealthMode(strings.ToLower(string(cfg.Health.Mode)))
}

// ValidateLogLevel checks that level is one of the supported log levels
func ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return errors.New("log_level must be one of: debug, info, warn, error")
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if err := ValidateLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	if cfg.Health.Mode != HealthModeStatic && cfg.Health.Mode != HealthModeMonitor {
		return fmt.Errorf("health.mode must be 'static' or 'monitor'")
	}

	h := cfg.Health
	if h.ProbeInterval <= 0 {
		return errors.New("health.probe_interval must be positive")
	}
	if h.ProbeTimeout <= 0 {
		return errors.New("health.probe_timeout must be positive")
	}
	if h.EWMAAlpha <= 0 || h.EWMAAlpha > 1 {
		return errors.New("health.ewma_alpha must be in (0, 1]")
	}
	if h.MaxFailureRate < 0 || h.MaxFailureRate > 1 {
		return errors.New("health.max_failure_rate must be in [0, 1]")
	}
	if h.StatusLogInterval < 0 {
		return errors.New("health.status_log_interval must be non-negative")
	}
	if h.CircuitBreaker.FailureThreshold <= 0 {
		return errors.New("health.circuit_breaker.failure_threshold must be positive")
	}
	if h.CircuitBreaker.RecoveryTimeout <= 0 {
		return errors.New("health.circuit_breaker.recovery_timeout must be positive")
	}
	if h.CircuitBreaker.HalfOpenSuccesses <= 0 {
		return errors.New("health.circuit_breaker.half_open_successes must be positive")
	}

	s := cfg.Server
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if s.HistorySize <= 0 {
		return errors.New("server.history_size must be positive")
	}
	if s.HistoryTTL < time.Second {
		return errors.New("server.history_ttl must be at least 1s")
	}
	if s.EventInterval <= 0 {
		return errors.New("server.event_interval must be positive")
	}

	return nil
}
