package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.DefaultTimeoutSeconds != 120 {
		t.Errorf("DefaultTimeoutSeconds = %d, want 120", cfg.DefaultTimeoutSeconds)
	}
	if cfg.Breaker.Threshold != 5 || cfg.Breaker.CooldownSeconds != 300 {
		t.Errorf("breaker defaults wrong: %+v", cfg.Breaker)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelayMs != 1000 {
		t.Errorf("retry defaults wrong: %+v", cfg.Retry)
	}
	if cfg.Delegate.URL != "ws://127.0.0.1:8765/execute" {
		t.Errorf("delegate URL = %q", cfg.Delegate.URL)
	}
	if cfg.Delegate.ProbeSchedule != "*/5 * * * *" {
		t.Errorf("probe schedule = %q", cfg.Delegate.ProbeSchedule)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	yaml := `
max_concurrent: 8
bind_addr: "0.0.0.0:9000"
delegate:
  url: "ws://delegate.internal:9001/execute"
breaker:
  threshold: 10
retry:
  base_delay_ms: 250
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.MaxConcurrent != 8 {
		t.Errorf("MaxConcurrent = %d, want 8", cfg.MaxConcurrent)
	}
	if cfg.BindAddr != "0.0.0.0:9000" {
		t.Errorf("BindAddr = %q", cfg.BindAddr)
	}
	if cfg.Delegate.URL != "ws://delegate.internal:9001/execute" {
		t.Errorf("delegate URL = %q", cfg.Delegate.URL)
	}
	if cfg.Breaker.Threshold != 10 {
		t.Errorf("breaker threshold = %d, want 10", cfg.Breaker.Threshold)
	}
	// Unset fields keep their defaults.
	if cfg.Breaker.CooldownSeconds != 300 {
		t.Errorf("cooldown = %d, want default 300", cfg.Breaker.CooldownSeconds)
	}
	if cfg.Retry.BaseDelayMs != 250 {
		t.Errorf("base delay = %d, want 250", cfg.Retry.BaseDelayMs)
	}
}

func TestLoadFromBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{{not yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFrom(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OFFBRIDGE_DELEGATE_URL", "ws://override:1234/execute")
	t.Setenv("OFFBRIDGE_DELEGATE_TOKEN", "env-token")
	t.Setenv("OFFBRIDGE_MAX_CONCURRENT", "12")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Delegate.URL != "ws://override:1234/execute" {
		t.Errorf("delegate URL = %q", cfg.Delegate.URL)
	}
	if cfg.Delegate.AuthToken != "env-token" {
		t.Errorf("auth token = %q", cfg.Delegate.AuthToken)
	}
	if cfg.MaxConcurrent != 12 {
		t.Errorf("MaxConcurrent = %d, want 12", cfg.MaxConcurrent)
	}
}

func TestEnvOverrideInvalidNumberIgnored(t *testing.T) {
	t.Setenv("OFFBRIDGE_MAX_CONCURRENT", "banana")
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want default 5", cfg.MaxConcurrent)
	}
}

func TestNormalizeClampsBadValues(t *testing.T) {
	dir := t.TempDir()
	yaml := `
max_concurrent: -1
sweep_interval_ms: 0
breaker:
  threshold: -3
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.MaxConcurrent != 5 || cfg.SweepIntervalMs != 250 || cfg.Breaker.Threshold != 5 {
		t.Errorf("normalize failed: cap=%d sweep=%d threshold=%d", cfg.MaxConcurrent, cfg.SweepIntervalMs, cfg.Breaker.Threshold)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.SweepInterval() != 250*time.Millisecond {
		t.Errorf("SweepInterval = %v", cfg.SweepInterval())
	}
	if cfg.DefaultTimeout() != 2*time.Minute {
		t.Errorf("DefaultTimeout = %v", cfg.DefaultTimeout())
	}
	if cfg.BreakerCooldown() != 5*time.Minute {
		t.Errorf("BreakerCooldown = %v", cfg.BreakerCooldown())
	}
	if cfg.RetryBaseDelay() != time.Second {
		t.Errorf("RetryBaseDelay = %v", cfg.RetryBaseDelay())
	}
	if cfg.DialTimeout() != 10*time.Second {
		t.Errorf("DialTimeout = %v", cfg.DialTimeout())
	}
}

func TestFingerprint(t *testing.T) {
	a, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical configs must share a fingerprint")
	}
	b.MaxConcurrent = 9
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("fingerprint must change with dispatch settings")
	}
}
