package stages

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
)

const loginPage = `<html>
<head><title>Secure Account Verification</title></head>
<body>
<form action="/submit" method="post">
	<input type="text" name="user">
	<input type="password" name="pass">
	<input type="submit" value="Verify">
</form>
<a href="https://other-site.example.org/a">partner</a>
<a href="https://another.example.org/b">promo</a>
<p>Verify your account immediately.</p>
</body></html>`

func newContentStage(t *testing.T) *ContentStage {
	t.Helper()
	return NewContentStage(nil, config.NewDefaultConfig())
}

func TestContentStageSkipsWithoutURL(t *testing.T) {
	s := newContentStage(t)
	dc := newDetectionContext(t, "+6591234567", "no links")

	out := s.Analyze(context.Background(), dc)
	if !out.Skipped {
		t.Errorf("outcome = %+v, want skipped", out)
	}
}

func TestContentStageExtractFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	s := newContentStage(t)
	s.client = srv.Client()
	f, err := s.extractFeatures(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	if f.Title != "Secure Account Verification" {
		t.Errorf("title = %q", f.Title)
	}
	if f.FormCount != 1 {
		t.Errorf("forms = %d", f.FormCount)
	}
	if f.PasswordFields != 1 {
		t.Errorf("password fields = %d", f.PasswordFields)
	}
	if f.InputFields != 3 {
		t.Errorf("input fields = %d", f.InputFields)
	}
	if f.ExternalLinks != 2 {
		t.Errorf("external links = %d", f.ExternalLinks)
	}
	if f.HasContactInfo {
		t.Error("page has no contact info")
	}
	if f.TextSample == "" {
		t.Error("expected a text sample")
	}
}

func TestContentStageFetchFailureDegrades(t *testing.T) {
	s := newContentStage(t)
	s.client = &http.Client{Transport: errTransport{}}
	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, "http://unreachable.invalid/page")

	out := s.Analyze(context.Background(), dc)
	if out.Details["degraded"] != true {
		t.Fatalf("expected degraded outcome: %+v", out)
	}
	if out.Verdict != detection.VerdictUncertain || out.Confidence != 0.3 {
		t.Errorf("outcome = %+v", out)
	}
}

func TestContentStageClassifierAndFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	stub := &stubClassifier{result: &llm.Classification{Verdict: "phishing", Confidence: 0.8, Reasoning: "credential form without contact info"}}
	s := newContentStage(t)
	s.client = srv.Client()
	s.classifier = stub

	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, srv.URL)

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictPhishing || out.Confidence != 0.8 {
		t.Errorf("outcome = %+v", out)
	}
	var passwordFlag, contactFlag bool
	for _, f := range out.Flags {
		if f.Weight == 20 {
			passwordFlag = true
		}
		if f.Weight == 10 {
			contactFlag = true
		}
	}
	if !passwordFlag || !contactFlag {
		t.Errorf("flags = %v", out.Flags)
	}
}

func TestContentStageHeuristic(t *testing.T) {
	s := newContentStage(t)

	tests := []struct {
		name     string
		features llm.ContentFeatures
		want     detection.Verdict
	}{
		{"clean page", llm.ContentFeatures{HasContactInfo: true}, detection.VerdictSafe},
		{"one indicator", llm.ContentFeatures{HasContactInfo: false}, detection.VerdictUncertain},
		{"credential harvest", llm.ContentFeatures{PasswordFields: 1, FormCount: 3, HasContactInfo: false}, detection.VerdictPhishing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if out := s.heuristic(tt.features); out.Verdict != tt.want {
				t.Errorf("verdict = %s, want %s", out.Verdict, tt.want)
			}
		})
	}
}
