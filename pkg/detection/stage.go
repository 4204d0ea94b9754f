package detection

import "context"

// Verdict is a stage's (or the pipeline's final) classification of the message.
type Verdict string

const (
	VerdictSafe       Verdict = "safe"
	VerdictSuspicious Verdict = "suspicious"
	VerdictUncertain  Verdict = "uncertain"
	VerdictPhishing   Verdict = "phishing"
)

// Stage names, in fixed execution order. The behavior stage is optional and
// only runs when enabled by configuration.
const (
	StageMessage  = "message"
	StageURL      = "url"
	StageContent  = "content"
	StageMetadata = "metadata"
	StageBehavior = "behavior"
)

// FlagPolarity marks whether a flag counts for or against the message.
type FlagPolarity string

const (
	FlagRed   FlagPolarity = "red"   // Suspicious indicator
	FlagGreen FlagPolarity = "green" // Legitimate indicator
)

// OutcomeFlag is a single indicator raised by a stage. The pipeline copies
// outcome flags into the Context's audit trail with a timestamp.
type OutcomeFlag struct {
	Description string       `json:"description"`
	Weight      int          `json:"weight"`
	Polarity    FlagPolarity `json:"polarity"`
}

// StageOutcome is what a stage returns from Analyze. Risk points for the
// aggregate score are derived by the Aggregator from Verdict and Confidence;
// a stage never writes the running score itself.
type StageOutcome struct {
	Verdict    Verdict        `json:"verdict"`
	Confidence float64        `json:"confidence"`
	Flags      []OutcomeFlag  `json:"flags,omitempty"`
	Details    map[string]any `json:"details,omitempty"`

	// Skipped marks the stage as inapplicable (e.g. no URL to analyze).
	// A skipped stage contributes zero weight and zero risk points.
	Skipped    bool   `json:"skipped,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// Stage is the capability contract every detection stage implements.
// A stage reads prior Context state, must not mutate fields it does not own,
// and tolerates missing upstream data by returning a neutral or skipped
// outcome rather than failing. A stage whose external dependency is
// unavailable degrades to its fallback heuristic and sets
// Details["degraded"] = true instead of aborting the run.
type Stage interface {
	Name() string
	Analyze(ctx context.Context, dc *Context) StageOutcome
}

// SkippedOutcome builds the canonical outcome for an inapplicable stage.
func SkippedOutcome(reason string) StageOutcome {
	return StageOutcome{
		Verdict:    VerdictUncertain,
		Confidence: 0,
		Skipped:    true,
		SkipReason: reason,
	}
}

// NeutralOutcome builds the canonical outcome for a stage that ran but could
// not reach any conclusion: Uncertain with zero confidence and zero points.
func NeutralOutcome(detail string) StageOutcome {
	return StageOutcome{
		Verdict:    VerdictUncertain,
		Confidence: 0,
		Details:    map[string]any{"note": detail},
	}
}

// DegradedOutcome marks o as produced by fallback heuristics because the
// stage's preferred external dependency was unavailable.
func DegradedOutcome(o StageOutcome, reason string) StageOutcome {
	if o.Details == nil {
		o.Details = make(map[string]any)
	}
	o.Details["degraded"] = true
	o.Details["degraded_reason"] = reason
	return o
}
