// Package stages implements the five detection stages. Each stage prefers an
// LLM classification of its extracted evidence and degrades to a local
// heuristic when the classifier is unavailable, so detection keeps working
// offline at reduced confidence.
package stages

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
)

// classifier is the slice of llm.Classifier the stages need. Tests substitute
// a canned implementation.
type classifier interface {
	Classify(ctx context.Context, systemPrompt, payload string) (*llm.Classification, error)
}

var (
	urlRe = regexp.MustCompile(`http[s]?://(?:[a-zA-Z0-9]|[$\-_@.&+]|[!*\\(\\),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+[^\s]*`)
	wwwRe = regexp.MustCompile(`www\.(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}(?:/[^\s]*)?`)
)

// ExtractURLs finds URLs in free text. Bare www. links get an http:// prefix
// so later stages can fetch them; a trailing sentence period is trimmed.
func ExtractURLs(text string) []string {
	urls := urlRe.FindAllString(text, -1)
	for _, w := range wwwRe.FindAllString(text, -1) {
		covered := false
		for _, u := range urls {
			if strings.Contains(u, w) {
				covered = true
				break
			}
		}
		if !covered {
			urls = append(urls, "http://"+w)
		}
	}
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, strings.TrimSuffix(u, "."))
	}
	return out
}

// mapVerdict converts the classifier's verdict word to the typed verdict.
func mapVerdict(s string) detection.Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "phishing":
		return detection.VerdictPhishing
	case "suspicious":
		return detection.VerdictSuspicious
	case "safe":
		return detection.VerdictSafe
	default:
		return detection.VerdictUncertain
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// fetchPage GETs a URL with the spoofed browser user agent. Phishing pages
// frequently cloak against non-browser agents.
func fetchPage(ctx context.Context, client *http.Client, rawURL, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return client.Do(req)
}
