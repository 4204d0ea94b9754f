// Package config holds global settings for the PhishGuard detection
// pipeline. All settings can be configured via environment variables,
// an optional YAML file, or programmatically.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMProvider defines the backend LLM service type
type LLMProvider string

const (
	ProviderNone       LLMProvider = "none"       // No LLM, heuristics only
	ProviderOllama     LLMProvider = "ollama"     // Local Ollama server (default)
	ProviderOpenRouter LLMProvider = "openrouter" // OpenRouter
	ProviderGroq       LLMProvider = "groq"       // Groq (high-speed inference)
)

// DefaultUserAgent is sent on page fetches so phishing kits serve the same
// content they would serve a real victim's browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds global settings for a PhishGuard deployment.
type Config struct {
	// === Detection Thresholds (0.0 - 1.0) ===
	// ConfidenceThresholdHigh is the early-exit trigger: a stage reporting
	// Phishing at or above this confidence short-circuits the pipeline.
	ConfidenceThresholdHigh float64 `yaml:"confidence_threshold_high"`
	// ConfidenceThresholdLow is used by stage heuristics to decide when a
	// verdict is too weak to keep and should collapse to Uncertain.
	ConfidenceThresholdLow float64 `yaml:"confidence_threshold_low"`

	// === LLM Provider Configuration ===
	LLMProvider LLMProvider `yaml:"llm_provider"`
	LLMAPIKey   string      `yaml:"llm_api_key"`
	LLMModel    string      `yaml:"llm_model"`
	LLMBaseURL  string      `yaml:"llm_base_url"`

	// === Timeouts ===
	// RequestTimeout bounds plain network calls (page fetch, whois, geo).
	// BrowserTimeout bounds headless-browser operations, which need longer.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	BrowserTimeout time.Duration `yaml:"browser_timeout"`
	LLMTimeout     time.Duration `yaml:"llm_timeout"`

	// === Feature Flags ===
	EnableBehaviorStage bool `yaml:"enable_behavior_stage"` // Run the headless-browser behavior stage
	EnableWhois         bool `yaml:"enable_whois"`          // Whois lookups during URL analysis
	EnableLocation      bool `yaml:"enable_location"`       // Best-effort host/sender geolocation

	// === Persistence ===
	StorageDir  string `yaml:"storage_dir"`  // Directory for JSON detection records
	PostgresURL string `yaml:"postgres_url"` // Optional: Postgres-backed store instead of JSON
	RedisAddr   string `yaml:"redis_addr"`   // Optional: lookup cache for URL/whois results

	// === Page Fetching ===
	UserAgent string `yaml:"user_agent"`

	// === Known-good domains, compared against extracted URLs ===
	LegitimateDomains []string `yaml:"legitimate_domains"`
}

// NewDefaultConfig creates a Config with sensible defaults.
// All settings can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ConfidenceThresholdHigh: GetEnvFloat("PHISHGUARD_CONFIDENCE_HIGH", 0.8),
		ConfidenceThresholdLow:  GetEnvFloat("PHISHGUARD_CONFIDENCE_LOW", 0.3),

		LLMProvider: detectLLMProvider(),
		LLMAPIKey:   GetEnv("PHISHGUARD_LLM_API_KEY", GetEnv("GROQ_API_KEY", os.Getenv("OPENROUTER_API_KEY"))),
		LLMModel:    GetEnv("PHISHGUARD_LLM_MODEL", "qwen2.5:7b"),
		LLMBaseURL:  GetEnv("PHISHGUARD_LLM_BASE_URL", ""),

		RequestTimeout: time.Duration(GetEnvInt("PHISHGUARD_REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
		BrowserTimeout: time.Duration(GetEnvInt("PHISHGUARD_BROWSER_TIMEOUT_SECONDS", 15)) * time.Second,
		LLMTimeout:     time.Duration(GetEnvInt("PHISHGUARD_LLM_TIMEOUT_SECONDS", 30)) * time.Second,

		EnableBehaviorStage: GetEnvBool("PHISHGUARD_ENABLE_BEHAVIOR", false),
		EnableWhois:         GetEnvBool("PHISHGUARD_ENABLE_WHOIS", true),
		EnableLocation:      GetEnvBool("PHISHGUARD_ENABLE_LOCATION", true),

		StorageDir:  GetEnv("PHISHGUARD_STORAGE_DIR", "detections"),
		PostgresURL: GetEnv("PHISHGUARD_POSTGRES_URL", ""),
		RedisAddr:   GetEnv("PHISHGUARD_REDIS_ADDR", ""),

		UserAgent: GetEnv("PHISHGUARD_USER_AGENT", DefaultUserAgent),

		LegitimateDomains: GetEnvSlice("PHISHGUARD_LEGITIMATE_DOMAINS", []string{
			"google.com", "amazon.com", "facebook.com", "microsoft.com",
			"apple.com", "paypal.com", "netflix.com", "instagram.com",
			"twitter.com", "linkedin.com", "github.com", "stackoverflow.com",
		}),
	}
}

// LoadFile overlays settings from a YAML file onto the Config.
// A missing file is not an error when optional is true.
func (c *Config) LoadFile(path string, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks threshold and timeout sanity before the pipeline starts.
func (c *Config) Validate() error {
	if c.ConfidenceThresholdHigh <= 0 || c.ConfidenceThresholdHigh > 1 {
		return fmt.Errorf("confidence_threshold_high must be in (0,1], got %v", c.ConfidenceThresholdHigh)
	}
	if c.ConfidenceThresholdLow < 0 || c.ConfidenceThresholdLow >= c.ConfidenceThresholdHigh {
		return fmt.Errorf("confidence_threshold_low must be in [0, high), got %v", c.ConfidenceThresholdLow)
	}
	if c.RequestTimeout <= 0 || c.BrowserTimeout <= 0 || c.LLMTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	return nil
}

// IsLegitimateDomain reports whether domain is on the known-good list.
func (c *Config) IsLegitimateDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, d := range c.LegitimateDomains {
		if domain == d {
			return true
		}
	}
	return false
}

func detectLLMProvider() LLMProvider {
	// Check explicit provider setting first
	if p := os.Getenv("PHISHGUARD_LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	// Auto-detect based on available keys
	if os.Getenv("GROQ_API_KEY") != "" {
		return ProviderGroq
	}
	if os.Getenv("OPENROUTER_API_KEY") != "" || os.Getenv("PHISHGUARD_LLM_API_KEY") != "" {
		return ProviderOpenRouter
	}
	// Default to Ollama (local) if no cloud keys found
	return ProviderOllama
}

// Helper functions for environment variable parsing

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
