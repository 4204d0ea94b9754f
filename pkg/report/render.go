package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/phishguard/phishguard/pkg/detection"
)

const rule = "================================================================================"
const thinRule = "--------------------------------------------------------------------------------"

// Render writes the human-readable form of the report.
func Render(w io.Writer, r *Report, dc *detection.Context) {
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "PHISHING DETECTION REPORT")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Detection ID: %s\n", r.DetectionID)
	fmt.Fprintf(w, "Timestamp: %s\n", dc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Sender: %s\n", dc.Sender)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)

	fmt.Fprintln(w, r.ExecutiveSummary)
	fmt.Fprintln(w)

	section(w, "RISK ANALYSIS")
	fmt.Fprintf(w, "Total risk score: %d (normalized %d/100)\n\n",
		r.RiskAnalysis.TotalRiskScore, r.RiskAnalysis.NormalizedScore)
	for _, stage := range sortedCategories(r.RiskAnalysis.Categories) {
		cat := r.RiskAnalysis.Categories[stage]
		fmt.Fprintf(w, "%s indicators (%d points):\n", titleCase(stage), cat.TotalPoints)
		for _, ind := range cat.Indicators {
			fmt.Fprintf(w, "  - %s\n", ind)
		}
		fmt.Fprintln(w)
	}

	if len(r.HistoricalPatterns) > 0 {
		section(w, "HISTORICAL PATTERNS")
		for _, p := range r.HistoricalPatterns {
			fmt.Fprintf(w, "- %s (severity: %s)\n", p.Message, p.Severity)
		}
		fmt.Fprintln(w)
	}

	if len(r.ForensicTimeline) > 0 {
		section(w, "FORENSIC TIMELINE")
		for _, e := range r.ForensicTimeline {
			fmt.Fprintf(w, "[%s] %s\n", e.Timestamp.Format(time.RFC3339), strings.ToUpper(e.Type))
			fmt.Fprintf(w, "  Stage: %s\n", e.Stage)
			fmt.Fprintf(w, "  Description: %s\n", e.Description)
			if e.Points > 0 {
				fmt.Fprintf(w, "  Risk points: +%d\n", e.Points)
			}
			fmt.Fprintln(w)
		}
	}

	section(w, "RECOMMENDATIONS")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "- %s\n", rec)
	}
	fmt.Fprintln(w)

	section(w, "CONFIDENCE ANALYSIS")
	fmt.Fprintln(w, r.ConfidenceExplanation)
	fmt.Fprintln(w)

	section(w, "STATISTICS")
	for _, key := range sortedKeys(r.Statistics) {
		fmt.Fprintf(w, "%s: %v\n", titleCase(key), r.Statistics[key])
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "END OF REPORT")
	fmt.Fprintln(w, rule)
}

// SaveToFile renders the report into reportsDir and returns the file path.
func SaveToFile(r *Report, dc *detection.Context, reportsDir string) (string, error) {
	if err := os.MkdirAll(reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	name := fmt.Sprintf("phishing_detection_%s.log", dc.CreatedAt.Format("20060102_150405"))
	path := filepath.Join(reportsDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	Render(f, r, dc)
	return path, nil
}

func section(w io.Writer, title string) {
	fmt.Fprintln(w, thinRule)
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, thinRule)
}

func sortedCategories(cats map[string]CategoryBreakdown) []string {
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
