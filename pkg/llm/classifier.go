// Package llm provides the language-model classifier the detection stages use
// as their primary analyzer. Every provider speaks the OpenAI-compatible
// chat/completions API; when the provider is unreachable the stages fall back
// to their local heuristics.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/httputil"
)

// DefaultTemperature keeps classification near-deterministic.
const DefaultTemperature = 0.1

// Classification is the parsed result of one LLM call.
type Classification struct {
	Verdict    string  `json:"verdict"`    // phishing, suspicious, safe, uncertain
	Confidence float64 `json:"confidence"` // 0.0-1.0
	Reasoning  string  `json:"reasoning"`
	LatencyMs  float64 `json:"latency_ms"`
}

// Classifier calls an external LLM over the OpenAI-compatible
// chat/completions endpoint.
type Classifier struct {
	client      *http.Client
	provider    config.LLMProvider
	baseURL     string
	apiKey      string
	model       string
	temperature float64
}

// ClassifierConfig holds the settings for one classifier instance.
type ClassifierConfig struct {
	Provider    config.LLMProvider
	APIKey      string // Optional for Ollama
	Model       string
	BaseURL     string // Optional override
	Temperature float64
	Timeout     time.Duration
}

// NewClassifier creates a classifier for the configured provider. Returns nil
// when the provider is none so callers can treat a missing classifier as
// "heuristics only".
func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Provider == config.ProviderNone {
		return nil
	}

	if cfg.Model == "" {
		if cfg.Provider == config.ProviderOllama {
			cfg.Model = "qwen2.5:7b"
		} else {
			cfg.Model = "llama-3.1-8b-instant"
		}
	}

	var baseURL string
	switch cfg.Provider {
	case config.ProviderOllama:
		baseURL = "http://localhost:11434/v1"
	case config.ProviderGroq:
		baseURL = "https://api.groq.com/openai/v1"
	case config.ProviderOpenRouter:
		fallthrough
	default:
		baseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Classifier{
		client:      httputil.WithTimeout(timeout),
		provider:    cfg.Provider,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
	}
}

// FromConfig builds a classifier from the application configuration.
func FromConfig(cfg *config.Config) *Classifier {
	return NewClassifier(ClassifierConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.LLMTimeout,
	})
}

// Model returns the configured model name, for logging.
func (c *Classifier) Model() string { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify sends the system prompt plus user payload and parses the verdict.
func (c *Classifier) Classify(ctx context.Context, systemPrompt, payload string) (*Classification, error) {
	if c == nil {
		return nil, fmt.Errorf("llm: classifier not configured")
	}
	if c.provider == config.ProviderOpenRouter && c.apiKey == "" {
		return nil, fmt.Errorf("llm: API key not configured for OpenRouter")
	}

	start := time.Now()
	content, err := c.callLLM(ctx, chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: payload},
		},
		Temperature: c.temperature,
	})
	latency := float64(time.Since(start).Milliseconds())
	if err != nil {
		return nil, err
	}

	result, err := ParseClassification(content)
	if err != nil {
		return nil, err
	}
	result.LatencyMs = latency
	return result, nil
}

func (c *Classifier) callLLM(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	// Providers are external; cap the body so a broken one cannot OOM us.
	const maxResponseSize = 2 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("llm: unmarshal error: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}
