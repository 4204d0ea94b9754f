package detection

import (
	"errors"
	"math"
	"testing"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	dc, err := NewContext("+6591234567", "test message")
	if err != nil {
		t.Fatal(err)
	}
	return dc
}

func TestFinalizeThresholdLadder(t *testing.T) {
	tests := []struct {
		name    string
		results []StageResult
		flags   []OutcomeFlag
		want    Verdict
	}{
		{
			name: "high score forces phishing",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictPhishing, Confidence: 0.7, RiskPoints: 21},
				{Stage: StageURL, Verdict: VerdictPhishing, Confidence: 0.7, RiskPoints: 25},
				{Stage: StageContent, Verdict: VerdictPhishing, Confidence: 0.7, RiskPoints: 18},
			},
			want: VerdictPhishing,
		},
		{
			name: "single confident phishing stage overrides low score",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9},
				{Stage: StageURL, Verdict: VerdictPhishing, Confidence: 0.85, RiskPoints: 30},
			},
			want: VerdictPhishing,
		},
		{
			name: "mid score is suspicious",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictSuspicious, Confidence: 0.7, RiskPoints: 11},
				{Stage: StageURL, Verdict: VerdictSuspicious, Confidence: 0.7, RiskPoints: 12},
				{Stage: StageContent, Verdict: VerdictSuspicious, Confidence: 0.7, RiskPoints: 9},
			},
			want: VerdictSuspicious,
		},
		{
			name: "clean run is safe",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9},
				{Stage: StageURL, Skipped: true, SkipReason: "no URL in message"},
				{Stage: StageMetadata, Verdict: VerdictUncertain, Confidence: 0.4},
			},
			want: VerdictSafe,
		},
		{
			name: "red flag blocks safe",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9},
			},
			flags: []OutcomeFlag{{Description: "urgency language", Weight: 20, Polarity: FlagRed}},
			want:  VerdictUncertain,
		},
		{
			name: "low-confidence phishing stage with low score is uncertain",
			results: []StageResult{
				{Stage: StageMessage, Verdict: VerdictPhishing, Confidence: 0.5, RiskPoints: 15},
			},
			want: VerdictUncertain,
		},
		{
			name: "no committed stages is uncertain",
			results: []StageResult{
				{Stage: StageMessage, Skipped: true, SkipReason: "nothing to analyze"},
			},
			want: VerdictUncertain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc := newTestContext(t)
			for _, res := range tt.results {
				if err := dc.RecordStageResult(res); err != nil {
					t.Fatal(err)
				}
			}
			for _, f := range tt.flags {
				dc.AddFlag(StageMessage, f)
			}

			engine := NewEngine(NewAggregator())
			if err := engine.Finalize(dc); err != nil {
				t.Fatalf("Finalize failed: %v", err)
			}
			if dc.FinalVerdict != tt.want {
				t.Errorf("verdict = %s, want %s (score %d)", dc.FinalVerdict, tt.want, dc.FinalRiskScore)
			}
		})
	}
}

func TestFinalizeRunsOnce(t *testing.T) {
	dc := newTestContext(t)
	dc.RecordStageResult(StageResult{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9})

	engine := NewEngine(NewAggregator())
	if err := engine.Finalize(dc); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	if err := engine.Finalize(dc); !errors.Is(err, ErrFrozenContext) {
		t.Fatalf("second Finalize error = %v, want ErrFrozenContext", err)
	}
}

func TestWeightedConfidenceSkipsZeroWeight(t *testing.T) {
	dc := newTestContext(t)
	dc.RecordStageResult(StageResult{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9})
	dc.RecordStageResult(StageResult{Stage: StageURL, Skipped: true, SkipReason: "no URL"})
	dc.RecordStageResult(StageResult{Stage: StageContent, Verdict: VerdictUncertain, Confidence: 0.3})

	engine := NewEngine(NewAggregator())
	if err := engine.Finalize(dc); err != nil {
		t.Fatal(err)
	}

	// (0.9*30 + 0.3*25) / (30+25)
	want := (0.9*30 + 0.3*25) / 55.0
	if math.Abs(dc.FinalConfidence-want) > 1e-9 {
		t.Errorf("FinalConfidence = %.4f, want %.4f", dc.FinalConfidence, want)
	}
}

func TestFinalizeRecordsNormalizedScore(t *testing.T) {
	dc := newTestContext(t)
	dc.RecordStageResult(StageResult{Stage: StageMessage, Verdict: VerdictPhishing, Confidence: 1.0, RiskPoints: 30})
	dc.RecordStageResult(StageResult{Stage: StageURL, Verdict: VerdictPhishing, Confidence: 1.0, RiskPoints: 35})

	engine := NewEngine(NewAggregator())
	if err := engine.Finalize(dc); err != nil {
		t.Fatal(err)
	}
	if dc.FinalRiskScore != 65 {
		t.Errorf("FinalRiskScore = %d, want 65", dc.FinalRiskScore)
	}
	// 65 of 110 without the behavior stage.
	if dc.NormalizedScore != 59 {
		t.Errorf("NormalizedScore = %d, want 59", dc.NormalizedScore)
	}
	if dc.FinalVerdict != VerdictPhishing {
		t.Errorf("verdict = %s, want phishing", dc.FinalVerdict)
	}
}
