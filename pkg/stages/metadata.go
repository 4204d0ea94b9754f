package stages

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/httputil"
	"github.com/phishguard/phishguard/pkg/llm"
)

// MetadataStage analyzes the HTTP response metadata of the linked page:
// status, server identification, and security headers. Legitimate services
// nearly always carry HSTS and frame protections; throwaway phishing hosts
// rarely bother.
type MetadataStage struct {
	classifier classifier
	client     *http.Client
	userAgent  string
}

// NewMetadataStage builds the metadata stage.
func NewMetadataStage(c *llm.Classifier, cfg *config.Config) *MetadataStage {
	s := &MetadataStage{
		client:    httputil.WithTimeout(cfg.RequestTimeout),
		userAgent: cfg.UserAgent,
	}
	if c != nil {
		s.classifier = c
	}
	return s
}

func (s *MetadataStage) Name() string { return detection.StageMetadata }

func (s *MetadataStage) Analyze(ctx context.Context, dc *detection.Context) detection.StageOutcome {
	target := dc.PrimaryURL()
	if target == "" {
		return detection.SkippedOutcome("no URL to fetch")
	}

	features, err := s.extractFeatures(ctx, target)
	if err != nil {
		log.Printf("[MetadataStage] fetch %s failed: %v", target, err)
		return detection.DegradedOutcome(detection.StageOutcome{
			Verdict:    detection.VerdictUncertain,
			Confidence: 0.3,
			Details:    map[string]any{"note": "could not fetch response metadata", "fetch_error": err.Error()},
		}, "page fetch failed")
	}

	var flags []detection.OutcomeFlag
	missing := missingSecurityHeaders(features)
	if len(missing) >= 3 {
		flags = append(flags, detection.OutcomeFlag{
			Description: "missing security headers: " + strings.Join(missing, ", "),
			Weight:      10, Polarity: detection.FlagRed,
		})
	}
	if !features.IsHTTPS {
		flags = append(flags, detection.OutcomeFlag{
			Description: "page served without HTTPS", Weight: 15, Polarity: detection.FlagRed,
		})
	}
	if features.HasHSTS && features.IsHTTPS {
		flags = append(flags, detection.OutcomeFlag{
			Description: "HSTS enforced", Weight: 5, Polarity: detection.FlagGreen,
		})
	}

	details := map[string]any{
		"status_code":  features.StatusCode,
		"server":       features.Server,
		"content_type": features.ContentType,
		"https":        features.IsHTTPS,
	}

	if s.classifier != nil {
		result, err := s.classifier.Classify(ctx, llm.SystemPrompt, llm.MetadataPrompt(features))
		if err == nil {
			return detection.StageOutcome{
				Verdict:    mapVerdict(result.Verdict),
				Confidence: result.Confidence,
				Flags:      flags,
				Details:    mergeDetails(details, result.Reasoning),
			}
		}
		log.Printf("[MetadataStage] classifier failed, using heuristics: %v", err)
	}

	outcome := s.heuristic(features)
	outcome.Flags = flags
	outcome.Details = mergeDetails(details, outcome.Details["note"])
	return detection.DegradedOutcome(outcome, "llm classifier unavailable")
}

func (s *MetadataStage) extractFeatures(ctx context.Context, target string) (llm.MetadataFeatures, error) {
	features := llm.MetadataFeatures{
		URL:         target,
		IsHTTPS:     strings.HasPrefix(target, "https"),
		Server:      "Unknown",
		ContentType: "Unknown",
	}

	resp, err := fetchPage(ctx, s.client, target, s.userAgent)
	if err != nil {
		return features, err
	}
	defer httputil.DrainAndClose(resp.Body)

	features.StatusCode = resp.StatusCode
	if v := resp.Header.Get("Server"); v != "" {
		features.Server = v
	}
	if v := resp.Header.Get("Content-Type"); v != "" {
		features.ContentType = v
	}
	features.HasHSTS = resp.Header.Get("Strict-Transport-Security") != ""
	features.HasCSP = resp.Header.Get("Content-Security-Policy") != ""
	features.HasXFO = resp.Header.Get("X-Frame-Options") != ""
	features.HasXCTO = resp.Header.Get("X-Content-Type-Options") != ""
	return features, nil
}

func missingSecurityHeaders(f llm.MetadataFeatures) []string {
	var missing []string
	if !f.HasHSTS {
		missing = append(missing, "Strict-Transport-Security")
	}
	if !f.HasCSP {
		missing = append(missing, "Content-Security-Policy")
	}
	if !f.HasXFO {
		missing = append(missing, "X-Frame-Options")
	}
	if !f.HasXCTO {
		missing = append(missing, "X-Content-Type-Options")
	}
	return missing
}

func (s *MetadataStage) heuristic(f llm.MetadataFeatures) detection.StageOutcome {
	suspicious := 0
	if !f.IsHTTPS {
		suspicious += 2
	}
	if len(missingSecurityHeaders(f)) >= 3 {
		suspicious++
	}
	switch f.StatusCode {
	case http.StatusOK, http.StatusMovedPermanently, http.StatusFound:
	default:
		suspicious++
	}

	switch {
	case suspicious >= 3:
		return detection.StageOutcome{Verdict: detection.VerdictPhishing, Confidence: 0.7, Details: map[string]any{"note": "insecure transport and missing protections"}}
	case suspicious >= 1:
		return detection.StageOutcome{Verdict: detection.VerdictUncertain, Confidence: 0.5, Details: map[string]any{"note": "some metadata indicators present"}}
	default:
		return detection.StageOutcome{Verdict: detection.VerdictSafe, Confidence: 0.6, Details: map[string]any{"note": "no metadata indicators"}}
	}
}
