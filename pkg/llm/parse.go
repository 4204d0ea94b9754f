package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	thinkTagRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	numberRe   = regexp.MustCompile(`\d+\.?\d*`)
)

// ParseClassification extracts verdict, confidence, and reasoning from a raw
// model response. Reasoning models wrap deliberation in <think> tags, which
// are stripped first. A JSON object is preferred; otherwise the labeled-line
// format from the stage prompts is parsed. Unknown verdict words collapse to
// uncertain rather than failing the stage.
func ParseClassification(raw string) (*Classification, error) {
	clean := strings.TrimSpace(thinkTagRe.ReplaceAllString(raw, ""))
	if clean == "" {
		return nil, fmt.Errorf("llm: empty response")
	}

	if result, ok := parseJSON(clean); ok {
		return result, nil
	}
	return parseLabeledLines(clean)
}

func parseJSON(clean string) (*Classification, bool) {
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return nil, false
	}
	var result Classification
	if err := json.Unmarshal([]byte(clean[start:end+1]), &result); err != nil {
		return nil, false
	}
	if result.Verdict == "" {
		return nil, false
	}
	result.Verdict = normalizeVerdict(result.Verdict)
	result.Confidence = clampConfidence(result.Confidence)
	return &result, true
}

func parseLabeledLines(clean string) (*Classification, error) {
	result := &Classification{
		Verdict:   "uncertain",
		Reasoning: "Failed to parse response",
	}
	sawVerdict := false

	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "verdict:"):
			result.Verdict = normalizeVerdict(afterColon(line))
			sawVerdict = true
		case strings.HasPrefix(lower, "confidence:"):
			if m := numberRe.FindString(afterColon(line)); m != "" {
				v, err := strconv.ParseFloat(m, 64)
				if err == nil {
					// Models occasionally answer in percent.
					if v > 1.0 {
						v /= 100.0
					}
					result.Confidence = clampConfidence(v)
				}
			}
		case strings.HasPrefix(lower, "reasoning:"):
			result.Reasoning = afterColon(line)
		}
	}

	// Multi-line reasoning: capture everything after the label.
	if result.Reasoning == "Failed to parse response" {
		if idx := strings.Index(strings.ToLower(clean), "reasoning:"); idx != -1 {
			result.Reasoning = strings.TrimSpace(clean[idx+len("reasoning:"):])
		}
	}

	if !sawVerdict {
		return nil, fmt.Errorf("llm: response has no verdict: %.120s", clean)
	}
	return result, nil
}

func afterColon(line string) string {
	if _, rest, ok := strings.Cut(line, ":"); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

// normalizeVerdict maps free-form verdict text onto the four canonical
// values. Substring matching is deliberate: many models answer "Phishing
// (high risk)" or similar.
func normalizeVerdict(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "phishing"):
		return "phishing"
	case strings.Contains(lower, "suspicious"):
		return "suspicious"
	case strings.Contains(lower, "safe"):
		return "safe"
	default:
		return "uncertain"
	}
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
