package stages

import (
	"context"
	"errors"
	"testing"

	"github.com/phishguard/phishguard/pkg/detection"
	"github.com/phishguard/phishguard/pkg/llm"
	"github.com/phishguard/phishguard/pkg/patterns"
)

func TestMessageStagePlainMessageIsSafe(t *testing.T) {
	stub := &stubClassifier{result: &llm.Classification{Verdict: "phishing", Confidence: 0.9}}
	s := &MessageStage{classifier: stub, registry: patterns.Get()}
	dc := newDetectionContext(t, "+6591234567", "Want to grab lunch at 12 tomorrow?")

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictSafe || out.Confidence != 0.9 {
		t.Errorf("outcome = %+v, want safe 0.9", out)
	}
	if stub.calls != 0 {
		t.Error("plain message should not reach the classifier")
	}
	if len(dc.ExtractedURLs) != 0 {
		t.Errorf("unexpected URLs: %v", dc.ExtractedURLs)
	}
}

func TestMessageStageExtractsURLsAndClassifies(t *testing.T) {
	stub := &stubClassifier{result: &llm.Classification{
		Verdict: "phishing", Confidence: 0.85, Reasoning: "bank impersonation with urgent link",
	}}
	s := &MessageStage{classifier: stub, registry: patterns.Get()}
	dc := newDetectionContext(t, "+6598765432", "OCBC-BANK: Your account is suspended. Verify immediately at http://bit.ly/x9z2")

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictPhishing || out.Confidence != 0.85 {
		t.Errorf("outcome = %+v", out)
	}
	if stub.calls != 1 {
		t.Errorf("classifier calls = %d, want 1", stub.calls)
	}
	if len(dc.ExtractedURLs) != 1 || dc.ExtractedURLs[0] != "http://bit.ly/x9z2" {
		t.Errorf("extracted URLs = %v", dc.ExtractedURLs)
	}
	if !dc.ShortenerUsed {
		t.Error("bit.ly host should mark shortener use")
	}
	if len(out.Flags) == 0 {
		t.Error("suspension threat should raise pattern flags")
	}
	if out.Details["degraded"] == true {
		t.Error("successful classification must not be marked degraded")
	}
}

func TestMessageStageHeuristicFallback(t *testing.T) {
	stub := &stubClassifier{err: errors.New("connection refused")}
	s := &MessageStage{classifier: stub, registry: patterns.Get()}
	dc := newDetectionContext(t, "+6598765432", "URGENT: share your OTP code now or your account will be suspended immediately")

	out := s.Analyze(context.Background(), dc)
	if out.Details["degraded"] != true {
		t.Fatalf("expected degraded outcome, got %+v", out)
	}
	if out.Verdict != detection.VerdictPhishing {
		t.Errorf("verdict = %s, want phishing from accumulated severities", out.Verdict)
	}
	if len(out.Flags) < 2 {
		t.Errorf("flags = %v, want OTP and urgency indicators", out.Flags)
	}
}

func TestMessageStageNoClassifierWithURL(t *testing.T) {
	s := &MessageStage{registry: patterns.Get()}
	dc := newDetectionContext(t, "+6598765432", "check this out http://example-site.test/page")

	out := s.Analyze(context.Background(), dc)
	if out.Details["degraded"] != true {
		t.Error("heuristic-only run should be marked degraded")
	}
	if out.Verdict != detection.VerdictSuspicious || out.Confidence != 0.5 {
		t.Errorf("outcome = %+v, want suspicious 0.5 for unanalyzed URL", out)
	}
}

func TestMessageStageLocationMismatchFlag(t *testing.T) {
	stub := &stubClassifier{result: &llm.Classification{Verdict: "suspicious", Confidence: 0.6}}
	s := &MessageStage{classifier: stub, registry: patterns.Get()}
	dc := newDetectionContext(t, "+2348012345678", "your parcel needs a fee, pay at http://pay.example.test")
	if err := dc.SetLocation(&detection.LocationInfo{
		SenderCountry: "Nigeria", HostCountry: "Singapore", Mismatch: true,
	}); err != nil {
		t.Fatal(err)
	}

	out := s.Analyze(context.Background(), dc)
	found := false
	for _, f := range out.Flags {
		if f.Polarity == detection.FlagRed && f.Weight == 10 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected location mismatch flag, got %v", out.Flags)
	}
}

func TestMessageStagePlainMessageKeepsMismatchFlag(t *testing.T) {
	s := &MessageStage{registry: patterns.Get()}
	dc := newDetectionContext(t, "+2348012345678", "Want to grab lunch at 12 tomorrow?")
	if err := dc.SetLocation(&detection.LocationInfo{
		SenderCountry: "Nigeria", HostCountry: "Singapore", Mismatch: true,
	}); err != nil {
		t.Fatal(err)
	}

	out := s.Analyze(context.Background(), dc)
	if out.Verdict != detection.VerdictSafe {
		t.Errorf("verdict = %v, want safe", out.Verdict)
	}
	if len(out.Flags) != 1 || out.Flags[0].Weight != 10 {
		t.Errorf("expected the location mismatch flag on the fast path, got %v", out.Flags)
	}
}

func TestMessageStageNormalizesLookalikeText(t *testing.T) {
	s := &MessageStage{registry: patterns.Get()}
	// Fullwidth "ＵＲＧＥＮＴ" folds to "urgent" under NFKC.
	dc := newDetectionContext(t, "+6598765432", "ＵＲＧＥＮＴ: verify your account")

	out := s.Analyze(context.Background(), dc)
	if out.Verdict == detection.VerdictSafe {
		t.Errorf("lookalike urgency text slipped through: %+v", out)
	}
}
