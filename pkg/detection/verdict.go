package detection

// Score thresholds for the final classification, evaluated highest first.
const (
	PhishingScoreThreshold   = 61
	SuspiciousScoreThreshold = 31
)

// Engine turns the committed evidence into the final verdict. Finalize runs
// exactly once per detection: it writes the final fields and freezes the
// context, so a second invocation fails with ErrFrozenContext.
type Engine struct {
	agg *Aggregator

	// PhishingConfidence is the per-stage confidence at which a single
	// Phishing stage verdict forces a PHISHING final verdict regardless
	// of the aggregate score.
	PhishingConfidence float64
}

// NewEngine returns a verdict engine with the default 0.8 single-stage
// phishing confidence override.
func NewEngine(agg *Aggregator) *Engine {
	return &Engine{agg: agg, PhishingConfidence: 0.8}
}

// Finalize classifies the detection and freezes the context.
func (e *Engine) Finalize(dc *Context) error {
	if dc.Frozen {
		return ErrFrozenContext
	}

	score := e.agg.Recompute(dc)
	verdict := e.classify(dc, score)
	confidence := e.weightedConfidence(dc)
	normalized := e.agg.NormalizedScore(dc)

	return dc.setFinal(verdict, confidence, score, normalized)
}

// classify applies the threshold ladder from most to least severe. The order
// matters: a high score must win over a nominally safe stage mix.
func (e *Engine) classify(dc *Context, score int) Verdict {
	committed := dc.CommittedResults()

	if score >= PhishingScoreThreshold {
		return VerdictPhishing
	}
	for _, res := range committed {
		if res.Verdict == VerdictPhishing && res.Confidence >= e.PhishingConfidence {
			return VerdictPhishing
		}
	}
	if score >= SuspiciousScoreThreshold {
		return VerdictSuspicious
	}

	// SAFE requires positive evidence of a clean run, not mere absence of
	// stages: at least one stage analyzed the message, nothing raised a
	// red flag, and no stage contributed any risk.
	if len(committed) > 0 && score == 0 && len(dc.RedFlags) == 0 {
		allBenign := true
		for _, res := range committed {
			if res.Verdict != VerdictSafe && res.Verdict != VerdictUncertain {
				allBenign = false
				break
			}
		}
		if allBenign {
			return VerdictSafe
		}
	}

	return VerdictUncertain
}

// weightedConfidence is the budget-weighted mean of committed stage
// confidences. Skipped stages carry zero weight, so a partial run's
// confidence reflects only the evidence actually gathered.
func (e *Engine) weightedConfidence(dc *Context) float64 {
	var weighted, totalBudget float64
	for _, res := range dc.CommittedResults() {
		budget := float64(StageBudget(res.Stage))
		weighted += res.Confidence * budget
		totalBudget += budget
	}
	if totalBudget == 0 {
		return 0
	}
	return weighted / totalBudget
}
