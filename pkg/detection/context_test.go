package detection

import (
	"errors"
	"testing"
)

func TestNewContextValidation(t *testing.T) {
	tests := []struct {
		name    string
		sender  string
		message string
		wantErr error
	}{
		{"valid", "+6591234567", "Your package is waiting", nil},
		{"alphanumeric sender", "DBS-Alert", "hello", nil},
		{"empty message", "+6591234567", "", ErrEmptyMessage},
		{"whitespace message", "+6591234567", "   \n\t", ErrEmptyMessage},
		{"empty sender", "", "hello", ErrInvalidSender},
		{"control chars in sender", "+65\x0091234567", "hello", ErrInvalidSender},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := NewContext(tt.sender, tt.message)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewContext() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if dc.DetectionID == "" {
					t.Error("expected a detection ID")
				}
				if len(dc.Journal) == 0 {
					t.Error("expected context creation to be journaled")
				}
			}
		})
	}
}

func TestRecordStageResultDuplicate(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")

	res := StageResult{Stage: StageMessage, Verdict: VerdictSafe, Confidence: 0.9}
	if err := dc.RecordStageResult(res); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	err := dc.RecordStageResult(res)
	if !errors.Is(err, ErrDuplicateStage) {
		t.Fatalf("duplicate record error = %v, want ErrDuplicateStage", err)
	}
}

func TestFrozenContextRejectsMutation(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")
	if err := dc.setFinal(VerdictSafe, 0.9, 0, 0); err != nil {
		t.Fatalf("setFinal failed: %v", err)
	}
	if !dc.Frozen {
		t.Fatal("context should be frozen after final verdict")
	}

	checks := map[string]error{
		"RecordStageResult": dc.RecordStageResult(StageResult{Stage: StageURL}),
		"AddFlag":           dc.AddFlag(StageURL, OutcomeFlag{Description: "x"}),
		"AddExtractedURLs":  dc.AddExtractedURLs(StageMessage, "http://example.com"),
		"SetEarlyExit":      dc.SetEarlyExit("test"),
		"SetLocation":       dc.SetLocation(&LocationInfo{}),
		"setFinal":          dc.setFinal(VerdictSafe, 0.9, 0, 0),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrFrozenContext) {
			t.Errorf("%s on frozen context: error = %v, want ErrFrozenContext", name, err)
		}
	}
}

func TestAddFlagPolarity(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")

	dc.AddFlag(StageMessage, OutcomeFlag{Description: "urgency language", Weight: 20, Polarity: FlagRed})
	dc.AddFlag(StageURL, OutcomeFlag{Description: "domain on allowlist", Weight: 10, Polarity: FlagGreen})
	dc.AddFlag(StageMessage, OutcomeFlag{Description: "no polarity defaults red", Weight: 5})

	if len(dc.RedFlags) != 2 {
		t.Errorf("red flags = %d, want 2", len(dc.RedFlags))
	}
	if len(dc.GreenFlags) != 1 {
		t.Errorf("green flags = %d, want 1", len(dc.GreenFlags))
	}
	for _, f := range dc.RedFlags {
		if f.Polarity != FlagRed {
			t.Errorf("red flag %q has polarity %s", f.Description, f.Polarity)
		}
	}
}

func TestAddExtractedURLsDeduplicates(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")

	dc.AddExtractedURLs(StageMessage, "http://a.example", "http://b.example")
	dc.AddExtractedURLs(StageMessage, "http://a.example", "")

	if len(dc.ExtractedURLs) != 2 {
		t.Fatalf("extracted URLs = %v, want 2 unique", dc.ExtractedURLs)
	}
}

func TestPrimaryURLPrefersExpanded(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")
	if dc.PrimaryURL() != "" {
		t.Error("expected empty primary URL with no extractions")
	}

	dc.AddExtractedURLs(StageMessage, "http://bit.ly/abc")
	if got := dc.PrimaryURL(); got != "http://bit.ly/abc" {
		t.Errorf("PrimaryURL() = %q", got)
	}

	dc.SetExpandedURL(StageURL, "http://bit.ly/abc", "http://phish.example/login")
	if got := dc.PrimaryURL(); got != "http://phish.example/login" {
		t.Errorf("PrimaryURL() after expansion = %q", got)
	}
}

func TestSetLocationWriteOnce(t *testing.T) {
	dc, _ := NewContext("+6591234567", "test message")
	if err := dc.SetLocation(&LocationInfo{SenderCountry: "Singapore"}); err != nil {
		t.Fatalf("first SetLocation failed: %v", err)
	}
	if err := dc.SetLocation(&LocationInfo{SenderCountry: "Nigeria"}); err == nil {
		t.Fatal("second SetLocation should fail")
	}
	if dc.Location.SenderCountry != "Singapore" {
		t.Errorf("location overwritten: %+v", dc.Location)
	}
}
