package config

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DelegateConfig holds the connection settings for the delegate
// execution environment.
type DelegateConfig struct {
	// URL is the WebSocket endpoint of the delegate environment,
	// e.g. ws://127.0.0.1:8765/execute.
	URL string `yaml:"url"`
	// AuthToken is sent as a bearer token when dialing. Optional.
	AuthToken string `yaml:"auth_token"`
	// DialTimeoutSeconds bounds the connect phase of each call. Default 10.
	DialTimeoutSeconds int `yaml:"dial_timeout_seconds"`
	// ProbeSchedule is a 5-field cron expression for the periodic
	// connectivity probe. Empty disables the scheduled probe.
	ProbeSchedule string `yaml:"probe_schedule"`
}

// BreakerConfig tunes the shared circuit breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures before the
	// breaker opens. Default 5.
	Threshold int `yaml:"threshold"`
	// CooldownSeconds is the window after the last failure before an
	// open breaker resets on the next call. Default 300 (5 minutes).
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// RetryConfig tunes the per-call retry loop.
type RetryConfig struct {
	// MaxAttempts is the attempt budget per request. Default 3.
	MaxAttempts int `yaml:"max_attempts"`
	// BaseDelayMs is multiplied by the attempt number between retries.
	// Default 1000.
	BaseDelayMs int `yaml:"base_delay_ms"`
}

// OTelConfig mirrors the observability settings.
type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"` // "stdout" or "otlp"
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// AuthConfig gates the gateway API.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type Config struct {
	HomeDir string `yaml:"-"`

	// MaxConcurrent caps simultaneously active delegate requests. Default 5.
	MaxConcurrent int `yaml:"max_concurrent"`
	// SweepIntervalMs is the dispatcher's idle poll interval. Default 250.
	SweepIntervalMs int `yaml:"sweep_interval_ms"`
	// DefaultTimeoutSeconds is applied to requests without their own
	// timeout. Default 120.
	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds"`

	BindAddr string `yaml:"bind_addr"`
	LogLevel string `yaml:"log_level"`

	Delegate DelegateConfig `yaml:"delegate"`
	Breaker  BreakerConfig  `yaml:"breaker"`
	Retry    RetryConfig    `yaml:"retry"`
	OTel     OTelConfig     `yaml:"otel"`
	Auth     AuthConfig     `yaml:"auth"`
}

// ConfigPath returns the path to config.yaml within the given home directory.
func ConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// HomeDir resolves the bridge data directory. OFFBRIDGE_HOME overrides;
// otherwise ~/.offbridge.
func HomeDir() string {
	if override := os.Getenv("OFFBRIDGE_HOME"); override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".offbridge")
}

func defaultConfig() Config {
	return Config{
		MaxConcurrent:         5,
		SweepIntervalMs:       250,
		DefaultTimeoutSeconds: 120,
		BindAddr:              "127.0.0.1:18790",
		LogLevel:              "info",
		Delegate: DelegateConfig{
			URL:                "ws://127.0.0.1:8765/execute",
			DialTimeoutSeconds: 10,
			ProbeSchedule:      "*/5 * * * *",
		},
		Breaker: BreakerConfig{
			Threshold:       5,
			CooldownSeconds: 300,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelayMs: 1000,
		},
		OTel: OTelConfig{
			Exporter:    "stdout",
			ServiceName: "offbridge",
			SampleRate:  1.0,
		},
	}
}

// Load reads config.yaml from the bridge home directory, applies env
// overrides and normalizes defaults. A missing file yields the defaults.
func Load() (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = HomeDir()

	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return cfg, fmt.Errorf("create offbridge home: %w", err)
	}

	data, err := os.ReadFile(ConfigPath(cfg.HomeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

// LoadFrom is Load with an explicit home directory; used by tests and
// the config reload path.
func LoadFrom(homeDir string) (Config, error) {
	cfg := defaultConfig()
	cfg.HomeDir = homeDir

	data, err := os.ReadFile(ConfigPath(homeDir))
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config.yaml: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OFFBRIDGE_DELEGATE_URL"); v != "" {
		cfg.Delegate.URL = v
	}
	if v := os.Getenv("OFFBRIDGE_DELEGATE_TOKEN"); v != "" {
		cfg.Delegate.AuthToken = v
	}
	if v := os.Getenv("OFFBRIDGE_BIND_ADDR"); v != "" {
		cfg.BindAddr = v
	}
	if v := os.Getenv("OFFBRIDGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OFFBRIDGE_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxConcurrent = n
		}
	}
}

func normalize(cfg *Config) {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.SweepIntervalMs <= 0 {
		cfg.SweepIntervalMs = 250
	}
	if cfg.DefaultTimeoutSeconds <= 0 {
		cfg.DefaultTimeoutSeconds = 120
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "127.0.0.1:18790"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Delegate.DialTimeoutSeconds <= 0 {
		cfg.Delegate.DialTimeoutSeconds = 10
	}
	if cfg.Breaker.Threshold <= 0 {
		cfg.Breaker.Threshold = 5
	}
	if cfg.Breaker.CooldownSeconds <= 0 {
		cfg.Breaker.CooldownSeconds = 300
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelayMs <= 0 {
		cfg.Retry.BaseDelayMs = 1000
	}
	if cfg.OTel.SampleRate <= 0 {
		cfg.OTel.SampleRate = 1.0
	}
	if cfg.OTel.ServiceName == "" {
		cfg.OTel.ServiceName = "offbridge"
	}
}

// SweepInterval returns the dispatcher poll interval as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// DefaultTimeout returns the fallback per-request timeout.
func (c Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// BreakerCooldown returns the breaker reset window.
func (c Config) BreakerCooldown() time.Duration {
	return time.Duration(c.Breaker.CooldownSeconds) * time.Second
}

// RetryBaseDelay returns the base inter-retry delay.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Retry.BaseDelayMs) * time.Millisecond
}

// DialTimeout returns the delegate dial timeout.
func (c Config) DialTimeout() time.Duration {
	return time.Duration(c.Delegate.DialTimeoutSeconds) * time.Second
}

// Fingerprint returns a stable hash of the dispatch-relevant settings,
// logged on startup and on hot reload so config drift is visible.
func (c Config) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "cap=%d|sweep=%d|timeout=%d|bind=%s|log=%s|delegate=%s|breaker=%d/%d|retry=%d/%d",
		c.MaxConcurrent, c.SweepIntervalMs, c.DefaultTimeoutSeconds, c.BindAddr, c.LogLevel,
		c.Delegate.URL, c.Breaker.Threshold, c.Breaker.CooldownSeconds,
		c.Retry.MaxAttempts, c.Retry.BaseDelayMs)
	return fmt.Sprintf("cfg-%x", h.Sum64())
}
