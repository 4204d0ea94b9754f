package main

import (
	"context"
	"fmt"
	"log"

	"github.com/phishguard/phishguard/pkg/browser"
	"github.com/phishguard/phishguard/pkg/cache"
	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/history"
	"github.com/phishguard/phishguard/pkg/llm"
	"github.com/phishguard/phishguard/pkg/location"
	"github.com/phishguard/phishguard/pkg/stages"
	"github.com/phishguard/phishguard/pkg/storage"
)

// loadConfig builds the runtime config: env defaults overlaid with the
// optional YAML file from --config.
func loadConfig() (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFile(configPath, true); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore selects the persistence backend: Postgres when a URL is
// configured, one-file-per-detection JSON otherwise.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.PostgresURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		log.Println("[PhishGuard] using Postgres detection store")
		return store, nil
	}
	return storage.NewJSONStore(cfg.StorageDir)
}

// buildPipeline wires the stage chain from the config. The headless browser
// and its behavior stage only exist when explicitly enabled.
func buildPipeline(cfg *config.Config) *detection.Pipeline {
	classifier := llm.FromConfig(cfg)
	if classifier == nil {
		log.Println("[PhishGuard] LLM classifier disabled, stages fall back to heuristics")
	} else {
		log.Printf("[PhishGuard] LLM classifier enabled (provider: %s)", cfg.LLMProvider)
	}

	var b *browser.Browser
	var behaviorStage detection.Stage
	if cfg.EnableBehaviorStage {
		b = browser.New(cfg.BrowserTimeout, cfg.UserAgent)
		behaviorStage = stages.NewBehaviorStage(classifier, b)
		log.Println("[PhishGuard] behavior stage enabled (headless browser)")
	}

	urlStage := stages.NewURLStage(classifier, b, cfg)
	if c := cache.New(cfg.RedisAddr, cache.DefaultTTL); c != nil {
		urlStage.WithCache(c)
		log.Printf("[PhishGuard] Redis lookup cache enabled (%s)", cfg.RedisAddr)
	}

	chain := []detection.Stage{
		stages.NewMessageStage(classifier),
		urlStage,
		stages.NewContentStage(classifier, cfg),
		stages.NewMetadataStage(classifier, cfg),
	}

	var resolver detection.LocationProvider
	if cfg.EnableLocation {
		resolver = location.NewResolver()
	}

	return detection.NewPipeline(chain, behaviorStage, resolver, cfg.ConfidenceThresholdHigh)
}

// newHistoryIndex builds the similar-message index. Embeddings come from the
// local Ollama server, so the index only exists for that provider.
func newHistoryIndex(cfg *config.Config) *history.Index {
	if cfg.LLMProvider != config.ProviderOllama {
		return nil
	}
	baseURL := cfg.LLMBaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	idx, err := history.NewOllamaIndex("nomic-embed-text", baseURL)
	if err != nil {
		log.Printf("[PhishGuard] similarity index disabled: %v", err)
		return nil
	}
	return idx
}

// backfillIndex loads stored detections into a fresh in-memory index so
// similarity lookups can see prior campaigns.
func backfillIndex(ctx context.Context, idx *history.Index, store storage.Store) {
	if idx == nil {
		return
	}
	all, err := store.LoadAll(ctx, 0)
	if err != nil {
		log.Printf("[PhishGuard] index backfill failed: %v", err)
		return
	}
	for _, dc := range all {
		if err := idx.Add(ctx, dc); err != nil {
			log.Printf("[PhishGuard] failed to index %s: %v", dc.DetectionID, err)
		}
	}
	if n := idx.Count(); n > 0 {
		log.Printf("[PhishGuard] similarity index loaded %d prior detections", n)
	}
}
