package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	if cfg.ConfidenceThresholdHigh != 0.8 {
		t.Errorf("expected default ConfidenceThresholdHigh 0.8, got %v", cfg.ConfidenceThresholdHigh)
	}
	if cfg.ConfidenceThresholdLow != 0.3 {
		t.Errorf("expected default ConfidenceThresholdLow 0.3, got %v", cfg.ConfidenceThresholdLow)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("expected default RequestTimeout 10s, got %v", cfg.RequestTimeout)
	}
	if cfg.BrowserTimeout != 15*time.Second {
		t.Errorf("expected default BrowserTimeout 15s, got %v", cfg.BrowserTimeout)
	}
	if cfg.EnableBehaviorStage {
		t.Error("behavior stage should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"high threshold zero", func(c *Config) { c.ConfidenceThresholdHigh = 0 }, true},
		{"high threshold above one", func(c *Config) { c.ConfidenceThresholdHigh = 1.2 }, true},
		{"low above high", func(c *Config) { c.ConfidenceThresholdLow = 0.9 }, true},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phishguard.yaml")
	data := []byte("confidence_threshold_high: 0.9\nenable_behavior_stage: true\nstorage_dir: /tmp/dets\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := NewDefaultConfig()
	if err := cfg.LoadFile(path, false); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.ConfidenceThresholdHigh != 0.9 {
		t.Errorf("expected ConfidenceThresholdHigh 0.9 from file, got %v", cfg.ConfidenceThresholdHigh)
	}
	if !cfg.EnableBehaviorStage {
		t.Error("expected EnableBehaviorStage true from file")
	}
	if cfg.StorageDir != "/tmp/dets" {
		t.Errorf("expected StorageDir /tmp/dets, got %q", cfg.StorageDir)
	}
	// Unset keys keep their defaults
	if cfg.ConfidenceThresholdLow != 0.3 {
		t.Errorf("expected ConfidenceThresholdLow to keep default 0.3, got %v", cfg.ConfidenceThresholdLow)
	}
}

func TestLoadFileOptionalMissing(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.LoadFile("/nonexistent/phishguard.yaml", true); err != nil {
		t.Errorf("optional missing file should not error, got %v", err)
	}
	if err := cfg.LoadFile("/nonexistent/phishguard.yaml", false); err == nil {
		t.Error("required missing file should error")
	}
}

func TestIsLegitimateDomain(t *testing.T) {
	cfg := NewDefaultConfig()
	if !cfg.IsLegitimateDomain("paypal.com") {
		t.Error("paypal.com should be legitimate")
	}
	if !cfg.IsLegitimateDomain("PayPal.com") {
		t.Error("domain matching should be case-insensitive")
	}
	if cfg.IsLegitimateDomain("paypa1-secure.com") {
		t.Error("paypa1-secure.com should not be legitimate")
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PHISHGUARD_TEST_STR", "hello")
	t.Setenv("PHISHGUARD_TEST_BOOL", "true")
	t.Setenv("PHISHGUARD_TEST_FLOAT", "0.75")
	t.Setenv("PHISHGUARD_TEST_INT", "42")
	t.Setenv("PHISHGUARD_TEST_SLICE", "a, b ,c")

	if got := GetEnv("PHISHGUARD_TEST_STR", "x"); got != "hello" {
		t.Errorf("GetEnv = %q", got)
	}
	if got := GetEnv("PHISHGUARD_TEST_UNSET", "x"); got != "x" {
		t.Errorf("GetEnv default = %q", got)
	}
	if !GetEnvBool("PHISHGUARD_TEST_BOOL", false) {
		t.Error("GetEnvBool should be true")
	}
	if got := GetEnvFloat("PHISHGUARD_TEST_FLOAT", 0); got != 0.75 {
		t.Errorf("GetEnvFloat = %v", got)
	}
	if got := GetEnvInt("PHISHGUARD_TEST_INT", 0); got != 42 {
		t.Errorf("GetEnvInt = %v", got)
	}
	got := GetEnvSlice("PHISHGUARD_TEST_SLICE", nil)
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("GetEnvSlice = %v", got)
	}
}
