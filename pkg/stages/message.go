package stages

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
	"github.com/phishguard/phishguard/pkg/patterns"
)

// messageCategories are the text-lure pattern categories this stage scans.
var messageCategories = []patterns.Category{
	patterns.CategoryUrgency,
	patterns.CategoryCredentialBait,
	patterns.CategoryOTPLure,
	patterns.CategoryPrizeBait,
	patterns.CategoryThreat,
}

// MessageStage analyzes the raw SMS text and sender. It also extracts URLs
// into the shared context for the downstream stages.
type MessageStage struct {
	classifier classifier
	registry   *patterns.Registry
}

// NewMessageStage builds the message stage. A nil classifier means
// heuristics only.
func NewMessageStage(c *llm.Classifier) *MessageStage {
	s := &MessageStage{registry: patterns.Get()}
	if c != nil {
		s.classifier = c
	}
	return s
}

func (s *MessageStage) Name() string { return detection.StageMessage }

func (s *MessageStage) Analyze(ctx context.Context, dc *detection.Context) detection.StageOutcome {
	// NFKC folds fullwidth and other lookalike forms attackers use to
	// slip past keyword filters.
	normalized := strings.ToLower(norm.NFKC.String(dc.MessageText))

	urls := ExtractURLs(dc.MessageText)
	if err := dc.AddExtractedURLs(s.Name(), urls...); err != nil {
		log.Printf("[MessageStage] recording URLs: %v", err)
	}
	for _, u := range urls {
		if host := hostOf(u); host != "" && patterns.IsShortenerHost(host) {
			_ = dc.MarkShortenerUsed(s.Name())
			break
		}
	}

	matched := s.registry.MatchAll(normalized, messageCategories...)
	var flags []detection.OutcomeFlag
	totalSeverity := 0
	for _, p := range matched {
		totalSeverity += p.Severity
		flags = append(flags, detection.OutcomeFlag{
			Description: p.Description,
			Weight:      p.Severity,
			Polarity:    detection.FlagRed,
		})
	}
	if dc.Location != nil && dc.Location.Mismatch {
		flags = append(flags, detection.OutcomeFlag{
			Description: fmt.Sprintf("sender number registered in %s, recipient in %s",
				dc.Location.SenderCountry, dc.Location.HostCountry),
			Weight:   10,
			Polarity: detection.FlagRed,
		})
	}

	details := map[string]any{
		"urls_found":       urls,
		"matched_patterns": patternNames(matched),
	}

	// A plain message with no links and no lure language needs no LLM. A
	// location mismatch flag still rides along on this path.
	if len(urls) == 0 && len(matched) == 0 {
		return detection.StageOutcome{
			Verdict:    detection.VerdictSafe,
			Confidence: 0.9,
			Flags:      flags,
			Details:    mergeDetails(details, "no URLs or lure language detected"),
		}
	}

	if s.classifier != nil {
		result, err := s.classifier.Classify(ctx, llm.SystemPrompt, llm.MessagePrompt(dc.Sender, dc.MessageText, urls))
		if err == nil {
			return detection.StageOutcome{
				Verdict:    mapVerdict(result.Verdict),
				Confidence: result.Confidence,
				Flags:      flags,
				Details:    mergeDetails(details, result.Reasoning),
			}
		}
		log.Printf("[MessageStage] classifier failed, using heuristics: %v", err)
	}

	outcome := s.heuristic(totalSeverity, len(matched), len(urls))
	outcome.Flags = flags
	outcome.Details = mergeDetails(details, outcome.Details["note"])
	return detection.DegradedOutcome(outcome, "llm classifier unavailable")
}

// heuristic scores the message by accumulated pattern severity when no
// classifier is reachable.
func (s *MessageStage) heuristic(totalSeverity, matchCount, urlCount int) detection.StageOutcome {
	switch {
	case totalSeverity >= 60:
		return detection.StageOutcome{
			Verdict:    detection.VerdictPhishing,
			Confidence: 0.75,
			Details:    map[string]any{"note": "multiple high-severity lure patterns"},
		}
	case totalSeverity >= 30:
		return detection.StageOutcome{
			Verdict:    detection.VerdictSuspicious,
			Confidence: 0.6,
			Details:    map[string]any{"note": "lure language detected"},
		}
	case matchCount > 0:
		return detection.StageOutcome{
			Verdict:    detection.VerdictUncertain,
			Confidence: 0.4,
			Details:    map[string]any{"note": "weak lure indicators"},
		}
	case urlCount > 0:
		return detection.StageOutcome{
			Verdict:    detection.VerdictSuspicious,
			Confidence: 0.5,
			Details:    map[string]any{"note": "unable to analyze with LLM, but URLs detected"},
		}
	default:
		return detection.StageOutcome{
			Verdict:    detection.VerdictSafe,
			Confidence: 0.6,
			Details:    map[string]any{"note": "no indicators"},
		}
	}
}

func patternNames(ps []*patterns.Pattern) []string {
	names := make([]string, 0, len(ps))
	for _, p := range ps {
		names = append(names, p.Name)
	}
	return names
}

func mergeDetails(details map[string]any, reasoning any) map[string]any {
	if reasoning != nil && reasoning != "" {
		details["reasoning"] = reasoning
	}
	return details
}
