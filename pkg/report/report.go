// Package report turns a completed detection into a forensic report: an
// executive summary, a risk breakdown per stage, matches against stored
// history, a flag timeline, and recommendations for the recipient.
package report

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/history"
	"github.com/phishguard/phishguard/pkg/storage"
)

// CategoryBreakdown groups the red flags one stage raised.
type CategoryBreakdown struct {
	Count       int      `json:"count"`
	TotalPoints int      `json:"total_points"`
	Indicators  []string `json:"indicators"`
}

// RiskAnalysis breaks the risk score down by stage.
type RiskAnalysis struct {
	TotalRiskScore  int                          `json:"total_risk_score"`
	NormalizedScore int                          `json:"normalized_score"`
	Categories      map[string]CategoryBreakdown `json:"categories"`
}

// HistoricalPattern is a link between this detection and stored history.
type HistoricalPattern struct {
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// TimelineEvent is a single entry in the forensic timeline.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	Stage       string    `json:"stage"`
	Description string    `json:"description"`
	Points      int       `json:"points,omitempty"`
	Severity    string    `json:"severity"`
}

// Report is the full forensic report for one detection.
type Report struct {
	DetectionID           string              `json:"detection_id"`
	GeneratedAt           time.Time           `json:"generated_at"`
	ExecutiveSummary      string              `json:"executive_summary"`
	RiskAnalysis          RiskAnalysis        `json:"risk_analysis"`
	HistoricalPatterns    []HistoricalPattern `json:"historical_patterns,omitempty"`
	ForensicTimeline      []TimelineEvent     `json:"forensic_timeline,omitempty"`
	Recommendations       []string            `json:"recommendations"`
	ConfidenceExplanation string              `json:"confidence_explanation"`
	Statistics            map[string]any      `json:"statistics"`
}

// Generator builds reports, enriching them from stored history when a store
// or similarity index is available.
type Generator struct {
	store storage.Store
	index *history.Index
}

// NewGenerator builds a report generator. Both store and index may be nil;
// the historical-patterns section is then omitted.
func NewGenerator(store storage.Store, index *history.Index) *Generator {
	return &Generator{store: store, index: index}
}

// Generate assembles the full report for a finished detection.
func (g *Generator) Generate(ctx context.Context, dc *detection.Context) (*Report, error) {
	if dc == nil {
		return nil, fmt.Errorf("report: detection context is nil")
	}
	if !dc.Frozen {
		return nil, fmt.Errorf("report: detection %s has no final verdict yet", dc.DetectionID)
	}

	return &Report{
		DetectionID:           dc.DetectionID,
		GeneratedAt:           time.Now().UTC(),
		ExecutiveSummary:      executiveSummary(dc),
		RiskAnalysis:          riskAnalysis(dc),
		HistoricalPatterns:    g.historicalPatterns(ctx, dc),
		ForensicTimeline:      timeline(dc),
		Recommendations:       recommendations(dc),
		ConfidenceExplanation: confidenceExplanation(dc),
		Statistics:            statistics(dc),
	}, nil
}

func executiveSummary(dc *detection.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "VERDICT: %s (confidence: %.1f%%)\n\n",
		strings.ToUpper(string(dc.FinalVerdict)), dc.FinalConfidence*100)

	switch dc.FinalVerdict {
	case detection.VerdictPhishing:
		b.WriteString("CRITICAL ALERT: this message is highly likely to be a phishing scam.\n\n")
		fmt.Fprintf(&b, "Risk score: %d (normalized %d/100)\n", dc.FinalRiskScore, dc.NormalizedScore)
		fmt.Fprintf(&b, "Suspicious indicators found: %d\n", len(dc.RedFlags))
		fmt.Fprintf(&b, "Legitimate indicators found: %d", len(dc.GreenFlags))
	case detection.VerdictSuspicious:
		b.WriteString("WARNING: this message shows multiple suspicious characteristics.\n\n")
		fmt.Fprintf(&b, "Risk score: %d (normalized %d/100)\n", dc.FinalRiskScore, dc.NormalizedScore)
		b.WriteString("Verify the sender through official channels before acting on it.")
	case detection.VerdictSafe:
		b.WriteString("This message appears to be legitimate.\n\n")
		fmt.Fprintf(&b, "Legitimate indicators found: %d\n", len(dc.GreenFlags))
		b.WriteString("However, always verify sender identity before taking action.")
	default:
		b.WriteString("CAUTION: the analysis could not definitively classify this message.\n\n")
		b.WriteString("Exercise extreme caution and verify through official channels.")
	}
	return b.String()
}

func riskAnalysis(dc *detection.Context) RiskAnalysis {
	ra := RiskAnalysis{
		TotalRiskScore:  dc.FinalRiskScore,
		NormalizedScore: dc.NormalizedScore,
		Categories:      make(map[string]CategoryBreakdown),
	}
	for _, f := range dc.RedFlags {
		cat := ra.Categories[f.Stage]
		cat.Count++
		cat.TotalPoints += f.Weight
		cat.Indicators = append(cat.Indicators, f.Description)
		ra.Categories[f.Stage] = cat
	}
	return ra
}

func (g *Generator) historicalPatterns(ctx context.Context, dc *detection.Context) []HistoricalPattern {
	var patterns []HistoricalPattern

	if g.store != nil {
		bySender, err := g.store.SearchBySender(ctx, dc.Sender)
		if err != nil {
			log.Printf("[Report] sender history lookup failed: %v", err)
		} else if prior := countOthers(bySender, dc.DetectionID); prior > 0 {
			severity := "medium"
			if prior >= 3 {
				severity = "high"
			}
			patterns = append(patterns, HistoricalPattern{
				Type:     "repeat_sender",
				Count:    prior,
				Message:  fmt.Sprintf("this sender appears in %d previous detections", prior),
				Severity: severity,
			})
		}

		for _, u := range dc.ExtractedURLs {
			byURL, err := g.store.SearchByURL(ctx, u)
			if err != nil {
				log.Printf("[Report] URL history lookup failed: %v", err)
				continue
			}
			if prior := countOthers(byURL, dc.DetectionID); prior > 0 {
				patterns = append(patterns, HistoricalPattern{
					Type:     "known_url",
					Count:    prior,
					Message:  fmt.Sprintf("URL %q was seen in %d previous detections", u, prior),
					Severity: "high",
				})
			}
		}
	}

	if g.index != nil {
		matches, err := g.index.Similar(ctx, dc.MessageText, 3)
		if err != nil {
			log.Printf("[Report] similarity lookup failed: %v", err)
		} else {
			for _, m := range matches {
				if m.DetectionID == dc.DetectionID || m.Similarity < 0.8 {
					continue
				}
				patterns = append(patterns, HistoricalPattern{
					Type:     "similar_message",
					Count:    1,
					Message:  fmt.Sprintf("closely resembles detection %s (verdict %s, similarity %.2f)", m.DetectionID[:8], m.Verdict, m.Similarity),
					Severity: "high",
				})
			}
		}
	}
	return patterns
}

func countOthers(found []*detection.Context, selfID string) int {
	n := 0
	for _, dc := range found {
		if dc.DetectionID != selfID {
			n++
		}
	}
	return n
}

func timeline(dc *detection.Context) []TimelineEvent {
	var events []TimelineEvent
	for _, f := range dc.RedFlags {
		events = append(events, TimelineEvent{
			Timestamp:   f.Timestamp,
			Type:        "risk_detected",
			Stage:       f.Stage,
			Description: f.Description,
			Points:      f.Weight,
			Severity:    flagSeverity(f.Weight),
		})
	}
	for _, f := range dc.GreenFlags {
		events = append(events, TimelineEvent{
			Timestamp:   f.Timestamp,
			Type:        "positive_indicator",
			Stage:       f.Stage,
			Description: f.Description,
			Severity:    "info",
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func flagSeverity(points int) string {
	switch {
	case points >= 20:
		return "high"
	case points >= 10:
		return "medium"
	default:
		return "low"
	}
}

func recommendations(dc *detection.Context) []string {
	switch dc.FinalVerdict {
	case detection.VerdictPhishing:
		recs := []string{
			"DO NOT click any links in this message",
			"DO NOT provide personal information, passwords, or OTPs",
			"DO NOT call any phone numbers mentioned in the message",
			"Delete this message immediately",
			"Report the sender to your mobile carrier as phishing",
			"If you already clicked a link or provided information: change your passwords, monitor your bank accounts, and contact your bank",
		}
		recs = append(recs, "Block sender: "+dc.Sender)
		if len(dc.ExtractedURLs) > 0 {
			sample := dc.ExtractedURLs
			if len(sample) > 3 {
				sample = sample[:3]
			}
			recs = append(recs, "Malicious URLs detected: "+strings.Join(sample, ", "))
		}
		return recs
	case detection.VerdictSuspicious, detection.VerdictUncertain:
		return []string{
			"Exercise extreme caution with this message",
			"Verify the sender through official channels, using contact details from the official website",
			"Do not trust the sender name or caller ID, both can be spoofed",
			"Do not provide sensitive information via SMS",
			"If the message mentions a company, visit its official website directly instead of clicking links",
			"Take your time: legitimate organizations will not pressure you",
		}
	default:
		return []string{
			"Message appears legitimate based on current analysis",
			"Always verify sender identity before taking action",
			"Never share passwords, OTPs, or PINs via SMS",
			"When in doubt, visit official websites directly instead of clicking links",
		}
	}
}

func confidenceExplanation(dc *detection.Context) string {
	var b strings.Builder
	b.WriteString("Confidence calculation:\n\n")
	for _, name := range dc.StageOrder {
		res := dc.StageResults[name]
		if res.Skipped {
			fmt.Fprintf(&b, "- %s: SKIPPED (%s)\n", name, res.SkipReason)
			continue
		}
		fmt.Fprintf(&b, "- %s: %s (confidence: %.2f, risk points: %d)\n",
			name, strings.ToUpper(string(res.Verdict)), res.Confidence, res.RiskPoints)
	}
	fmt.Fprintf(&b, "\nFinal weighted confidence: %.2f", dc.FinalConfidence)
	if dc.EarlyExitReason != "" {
		fmt.Fprintf(&b, "\nAnalysis stopped early: %s", dc.EarlyExitReason)
	}
	return b.String()
}

func statistics(dc *detection.Context) map[string]any {
	stats := map[string]any{
		"stages_run":        len(dc.CommittedResults()),
		"stages_skipped":    len(dc.StageOrder) - len(dc.CommittedResults()),
		"total_red_flags":   len(dc.RedFlags),
		"total_green_flags": len(dc.GreenFlags),
		"risk_score":        dc.FinalRiskScore,
		"normalized_score":  dc.NormalizedScore,
		"urls_analyzed":     len(dc.ExtractedURLs),
		"message_length":    len(dc.MessageText),
	}
	if loc := dc.Location; loc != nil {
		if loc.HostCountry != "" {
			stats["host_country"] = loc.HostCountry
		}
		if loc.SenderCountry != "" {
			stats["sender_country"] = loc.SenderCountry
		}
	}
	return stats
}
