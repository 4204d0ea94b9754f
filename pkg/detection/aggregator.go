package detection

import "math"

// Per-stage maximum contributions to the aggregate risk score.
const (
	MessageMaxPoints  = 30
	URLMaxPoints      = 35
	ContentMaxPoints  = 25
	MetadataMaxPoints = 20
	BehaviorMaxPoints = 40

	// MandatoryMaxPoints is the score ceiling when the behavior stage does
	// not run; TotalMaxPoints applies when it does.
	MandatoryMaxPoints = 110
	TotalMaxPoints     = 150
)

// stageBudgets maps each stage to its score budget.
var stageBudgets = map[string]int{
	StageMessage:  MessageMaxPoints,
	StageURL:      URLMaxPoints,
	StageContent:  ContentMaxPoints,
	StageMetadata: MetadataMaxPoints,
	StageBehavior: BehaviorMaxPoints,
}

// StageBudget returns the maximum points the named stage can contribute.
func StageBudget(name string) int {
	return stageBudgets[name]
}

// verdictWeight scales a stage's budget by how incriminating its verdict is.
// Safe and Uncertain stages contribute nothing to the risk score.
func verdictWeight(v Verdict) float64 {
	switch v {
	case VerdictPhishing:
		return 1.0
	case VerdictSuspicious:
		return 0.5
	default:
		return 0.0
	}
}

// Aggregator derives risk points from stage outcomes and maintains the
// running aggregate score. It is stateless; all state lives in the Context.
type Aggregator struct{}

// NewAggregator returns the score aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Contribution computes the risk points a stage outcome earns:
// round(confidence x verdict weight x stage budget), clamped to the budget.
// Skipped stages always contribute zero.
func (a *Aggregator) Contribution(stage string, o StageOutcome) int {
	if o.Skipped {
		return 0
	}
	budget := stageBudgets[stage]
	points := int(math.Round(o.Confidence * verdictWeight(o.Verdict) * float64(budget)))
	if points < 0 {
		return 0
	}
	if points > budget {
		return budget
	}
	return points
}

// Recompute sets the context's running risk score to the sum of all committed
// stage contributions and returns it. The sum is idempotent and, since
// contributions are non-negative and recorded at most once per stage,
// monotonically non-decreasing across the run.
func (a *Aggregator) Recompute(dc *Context) int {
	total := 0
	for _, res := range dc.StageResults {
		if res.Skipped {
			continue
		}
		total += res.RiskPoints
	}
	dc.RunningRiskScore = total
	return total
}

// MaxApplicablePoints is the score ceiling for this run: 110 when the
// behavior stage did not run, 150 when it did.
func (a *Aggregator) MaxApplicablePoints(dc *Context) int {
	if dc.StageRan(StageBehavior) {
		return TotalMaxPoints
	}
	return MandatoryMaxPoints
}

// NormalizedScore maps the raw score onto 0-100 for display, scaling by the
// run's applicable ceiling so partial runs compare fairly with full runs.
func (a *Aggregator) NormalizedScore(dc *Context) int {
	maxPoints := a.MaxApplicablePoints(dc)
	if maxPoints == 0 {
		return 0
	}
	n := int(math.Round(float64(dc.RunningRiskScore) * 100.0 / float64(maxPoints)))
	if n > 100 {
		return 100
	}
	return n
}
