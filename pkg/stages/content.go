package stages

import (
	"context"
	"log"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/httputil"
	"github.com/phishguard/phishguard/pkg/llm"
)

// contactKeywords indicate a page offers some way to reach its operator.
// Phishing pages usually do not.
var contactKeywords = []string{"contact", "email", "phone", "address", "support"}

// ContentStage fetches the linked page and analyzes its visible content:
// forms, credential fields, link targets, and text.
type ContentStage struct {
	classifier classifier
	client     *http.Client
	userAgent  string
}

// NewContentStage builds the content stage.
func NewContentStage(c *llm.Classifier, cfg *config.Config) *ContentStage {
	s := &ContentStage{
		client:    httputil.WithTimeout(cfg.RequestTimeout),
		userAgent: cfg.UserAgent,
	}
	if c != nil {
		s.classifier = c
	}
	return s
}

func (s *ContentStage) Name() string { return detection.StageContent }

func (s *ContentStage) Analyze(ctx context.Context, dc *detection.Context) detection.StageOutcome {
	target := dc.PrimaryURL()
	if target == "" {
		return detection.SkippedOutcome("no URL to fetch")
	}

	features, err := s.extractFeatures(ctx, target)
	if err != nil {
		log.Printf("[ContentStage] fetch %s failed: %v", target, err)
		return detection.DegradedOutcome(detection.StageOutcome{
			Verdict:    detection.VerdictUncertain,
			Confidence: 0.3,
			Details:    map[string]any{"note": "could not fetch page content", "fetch_error": err.Error()},
		}, "page fetch failed")
	}

	var flags []detection.OutcomeFlag
	if features.PasswordFields > 0 {
		flags = append(flags, detection.OutcomeFlag{
			Description: "page contains password input fields", Weight: 20, Polarity: detection.FlagRed,
		})
	}
	if !features.HasContactInfo {
		flags = append(flags, detection.OutcomeFlag{
			Description: "no contact information on page", Weight: 10, Polarity: detection.FlagRed,
		})
	}

	details := map[string]any{
		"title":           features.Title,
		"form_count":      features.FormCount,
		"password_fields": features.PasswordFields,
		"input_fields":    features.InputFields,
		"external_links":  features.ExternalLinks,
	}

	if s.classifier != nil {
		result, err := s.classifier.Classify(ctx, llm.SystemPrompt, llm.ContentPrompt(features))
		if err == nil {
			return detection.StageOutcome{
				Verdict:    mapVerdict(result.Verdict),
				Confidence: result.Confidence,
				Flags:      flags,
				Details:    mergeDetails(details, result.Reasoning),
			}
		}
		log.Printf("[ContentStage] classifier failed, using heuristics: %v", err)
	}

	outcome := s.heuristic(features)
	outcome.Flags = flags
	outcome.Details = mergeDetails(details, outcome.Details["note"])
	return detection.DegradedOutcome(outcome, "llm classifier unavailable")
}

func (s *ContentStage) extractFeatures(ctx context.Context, target string) (llm.ContentFeatures, error) {
	features := llm.ContentFeatures{URL: target}

	resp, err := fetchPage(ctx, s.client, target, s.userAgent)
	if err != nil {
		return features, err
	}
	defer httputil.DrainAndClose(resp.Body)

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return features, err
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return features, err
	}

	domain := hostOf(target)
	features.Title = "No title"
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.Data {
		case "title":
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				features.Title = strings.TrimSpace(n.FirstChild.Data)
			}
		case "form":
			features.FormCount++
		case "input":
			features.InputFields++
			if strings.EqualFold(attrValue(n, "type"), "password") {
				features.PasswordFields++
			}
		case "a":
			href := attrValue(n, "href")
			if strings.HasPrefix(href, "http") && !strings.Contains(href, domain) {
				features.ExternalLinks++
			}
		}
	})

	text := textContent(doc)
	lower := strings.ToLower(text)
	for _, kw := range contactKeywords {
		if strings.Contains(lower, kw) {
			features.HasContactInfo = true
			break
		}
	}
	if len(text) > 1000 {
		text = text[:1000]
	}
	features.TextSample = text
	return features, nil
}

func (s *ContentStage) heuristic(f llm.ContentFeatures) detection.StageOutcome {
	suspicious := 0
	if f.PasswordFields > 0 {
		suspicious += 2
	}
	if f.FormCount > 2 {
		suspicious++
	}
	if !f.HasContactInfo {
		suspicious++
	}
	if f.ExternalLinks > 10 {
		suspicious++
	}

	switch {
	case suspicious >= 3:
		return detection.StageOutcome{Verdict: detection.VerdictPhishing, Confidence: 0.7, Details: map[string]any{"note": "credential form with missing contact info"}}
	case suspicious >= 1:
		return detection.StageOutcome{Verdict: detection.VerdictUncertain, Confidence: 0.5, Details: map[string]any{"note": "some content indicators present"}}
	default:
		return detection.StageOutcome{Verdict: detection.VerdictSafe, Confidence: 0.6, Details: map[string]any{"note": "no content indicators"}}
	}
}
