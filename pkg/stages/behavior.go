package stages

import (
	"context"
	"log"

	"github.com/phishguard/phishguard/pkg/browser"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
)

// pageObserver loads a page under instrumentation. *browser.Browser
// implements it; tests substitute a stub.
type pageObserver interface {
	ObservePage(ctx context.Context, rawURL string) browser.PageBehavior
}

// BehaviorStage loads the linked page in a headless browser and judges its
// runtime behavior: redirects, background traffic, dialogs, and downloads.
// It is the most expensive stage and only runs when explicitly enabled.
type BehaviorStage struct {
	classifier classifier
	observer   pageObserver
}

// NewBehaviorStage builds the behavior stage.
func NewBehaviorStage(c *llm.Classifier, b *browser.Browser) *BehaviorStage {
	s := &BehaviorStage{}
	if c != nil {
		s.classifier = c
	}
	if b != nil {
		s.observer = b
	}
	return s
}

func (s *BehaviorStage) Name() string { return detection.StageBehavior }

func (s *BehaviorStage) Analyze(ctx context.Context, dc *detection.Context) detection.StageOutcome {
	target := dc.PrimaryURL()
	if target == "" {
		return detection.SkippedOutcome("no URL to observe")
	}
	if s.observer == nil {
		return detection.SkippedOutcome("headless browser not available")
	}

	observed := s.observer.ObservePage(ctx, target)
	if observed.Error != "" {
		log.Printf("[BehaviorStage] observation of %s failed: %s", target, observed.Error)
		return detection.DegradedOutcome(detection.StageOutcome{
			Verdict:    detection.VerdictUncertain,
			Confidence: 0.3,
			Details:    map[string]any{"note": "could not observe page behavior", "browser_error": observed.Error},
		}, "page observation failed")
	}

	features := llm.BehaviorFeatures{
		URL:               target,
		FinalURL:          observed.FinalURL,
		RedirectCount:     observed.RedirectCount,
		BackgroundCount:   observed.BackgroundRequests,
		SuspiciousDomains: observed.ExternalDomains,
		HasAlerts:         observed.DialogOpened,
		HasDownloads:      observed.DownloadStarted,
	}

	var flags []detection.OutcomeFlag
	if observed.DownloadStarted {
		flags = append(flags, detection.OutcomeFlag{
			Description: "page attempted an automatic download", Weight: 25, Polarity: detection.FlagRed,
		})
	}
	if observed.DialogOpened {
		flags = append(flags, detection.OutcomeFlag{
			Description: "page opened a JavaScript dialog on load", Weight: 15, Polarity: detection.FlagRed,
		})
	}
	if hostOf(observed.FinalURL) != hostOf(target) && observed.FinalURL != "" {
		flags = append(flags, detection.OutcomeFlag{
			Description: "page redirected to a different domain", Weight: 20, Polarity: detection.FlagRed,
		})
	}

	details := map[string]any{
		"final_url":           observed.FinalURL,
		"redirect_count":      observed.RedirectCount,
		"background_requests": observed.BackgroundRequests,
		"external_domains":    observed.ExternalDomains,
		"dialog_opened":       observed.DialogOpened,
		"download_started":    observed.DownloadStarted,
	}

	if s.classifier != nil {
		result, err := s.classifier.Classify(ctx, llm.SystemPrompt, llm.BehaviorPrompt(features))
		if err == nil {
			return detection.StageOutcome{
				Verdict:    mapVerdict(result.Verdict),
				Confidence: result.Confidence,
				Flags:      flags,
				Details:    mergeDetails(details, result.Reasoning),
			}
		}
		log.Printf("[BehaviorStage] classifier failed, using heuristics: %v", err)
	}

	outcome := s.heuristic(observed)
	outcome.Flags = flags
	outcome.Details = mergeDetails(details, outcome.Details["note"])
	return detection.DegradedOutcome(outcome, "llm classifier unavailable")
}

func (s *BehaviorStage) heuristic(observed browser.PageBehavior) detection.StageOutcome {
	suspicious := 0
	if observed.RedirectCount > 0 {
		suspicious += 2
	}
	if len(observed.ExternalDomains) > 5 {
		suspicious++
	}
	if observed.DialogOpened {
		suspicious++
	}
	if observed.DownloadStarted {
		suspicious += 2
	}

	switch {
	case suspicious >= 3:
		return detection.StageOutcome{Verdict: detection.VerdictPhishing, Confidence: 0.8, Details: map[string]any{"note": "aggressive runtime behavior"}}
	case suspicious >= 1:
		return detection.StageOutcome{Verdict: detection.VerdictUncertain, Confidence: 0.5, Details: map[string]any{"note": "some behavioral indicators present"}}
	default:
		return detection.StageOutcome{Verdict: detection.VerdictSafe, Confidence: 0.6, Details: map[string]any{"note": "no behavioral indicators"}}
	}
}
