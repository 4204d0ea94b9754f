package stages

import (
	"context"
	"testing"

	"github.com/phishguard/phishguard/pkg/browser"
	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
)

type stubObserver struct {
	result browser.PageBehavior
}

func (s *stubObserver) ObservePage(_ context.Context, _ string) browser.PageBehavior {
	return s.result
}

func TestBehaviorStageSkips(t *testing.T) {
	t.Run("no URL", func(t *testing.T) {
		s := NewBehaviorStage(nil, nil)
		dc := newDetectionContext(t, "+6591234567", "no links")
		if out := s.Analyze(context.Background(), dc); !out.Skipped {
			t.Errorf("outcome = %+v", out)
		}
	})

	t.Run("no browser", func(t *testing.T) {
		s := NewBehaviorStage(nil, nil)
		dc := newDetectionContext(t, "+6591234567", "x")
		dc.AddExtractedURLs(detection.StageMessage, "http://example.test/")
		out := s.Analyze(context.Background(), dc)
		if !out.Skipped || out.SkipReason != "headless browser not available" {
			t.Errorf("outcome = %+v", out)
		}
	})
}

func TestBehaviorStageObservationFailureDegrades(t *testing.T) {
	s := &BehaviorStage{observer: &stubObserver{result: browser.PageBehavior{Error: "chrome crashed"}}}
	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, "http://example.test/")

	out := s.Analyze(context.Background(), dc)
	if out.Details["degraded"] != true || out.Verdict != detection.VerdictUncertain {
		t.Errorf("outcome = %+v", out)
	}
}

func TestBehaviorStageFlagsAggressiveBehavior(t *testing.T) {
	observed := browser.PageBehavior{
		FinalURL:           "http://landing.evil.test/download",
		RedirectCount:      2,
		BackgroundRequests: 40,
		ExternalDomains:    []string{"a.test", "b.test", "c.test", "d.test", "e.test", "f.test"},
		DialogOpened:       true,
		DownloadStarted:    true,
	}
	s := &BehaviorStage{observer: &stubObserver{result: observed}}
	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, "http://short.test/a")

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictPhishing || out.Confidence != 0.8 {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Flags) != 3 {
		t.Errorf("flags = %v, want download, dialog, and redirect flags", out.Flags)
	}
}

func TestBehaviorStageClassifierPath(t *testing.T) {
	stub := &stubClassifier{result: &llm.Classification{Verdict: "safe", Confidence: 0.7, Reasoning: "static page, no runtime tricks"}}
	s := &BehaviorStage{
		classifier: stub,
		observer:   &stubObserver{result: browser.PageBehavior{FinalURL: "http://example.test/"}},
	}
	dc := newDetectionContext(t, "+6591234567", "x")
	dc.AddExtractedURLs(detection.StageMessage, "http://example.test/")

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictSafe || out.Confidence != 0.7 {
		t.Errorf("outcome = %+v", out)
	}
	if stub.calls != 1 {
		t.Errorf("classifier calls = %d", stub.calls)
	}
}
