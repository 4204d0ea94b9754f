package detection

import (
	"context"
	"fmt"
	"log"
	"time"
)

// State tracks where a pipeline run is in its lifecycle.
type State string

const (
	StateInitialized State = "initialized"
	StateRunning     State = "running"
	StateEarlyExited State = "early_exited"
	StateCompleted   State = "completed"
)

// LocationProvider resolves best-effort geographic context for a sender and
// any host the pipeline already knows about. Failures are non-fatal; the
// pipeline proceeds without location data.
type LocationProvider interface {
	Lookup(ctx context.Context, sender string) (*LocationInfo, error)
}

// Pipeline orchestrates the detection stages over a shared evidence context.
// Stages run strictly in the order given; the optional behavior stage, when
// present, runs last.
type Pipeline struct {
	stages   []Stage
	behavior Stage
	location LocationProvider
	agg      *Aggregator
	engine   *Engine

	// EarlyExitConfidence stops the run when any stage returns Phishing at
	// or above this confidence. The same threshold applies at every stage
	// position.
	EarlyExitConfidence float64

	// OnStage, when set, is invoked after each stage result commits. Used
	// by the CLI to stream per-stage progress.
	OnStage func(res StageResult)
}

// NewPipeline builds a pipeline over the mandatory stages. The behavior stage
// and location provider are optional; pass nil to disable them.
func NewPipeline(stages []Stage, behavior Stage, location LocationProvider, earlyExitConfidence float64) *Pipeline {
	agg := NewAggregator()
	return &Pipeline{
		stages:              stages,
		behavior:            behavior,
		location:            location,
		agg:                 agg,
		engine:              NewEngine(agg),
		EarlyExitConfidence: earlyExitConfidence,
	}
}

// Run executes a full detection for one message and returns the frozen
// evidence context. Input validation failures and internal contract
// violations return an error; stage-level analysis failures do not, they
// degrade or skip instead.
func (p *Pipeline) Run(ctx context.Context, sender, message string) (*Context, error) {
	dc, err := NewContext(sender, message)
	if err != nil {
		return nil, err
	}

	state := StateInitialized
	log.Printf("[Pipeline] %s: starting detection for sender %s", dc.DetectionID[:8], sender)

	p.lookupLocation(ctx, dc)

	state = StateRunning
	all := p.stages
	if p.behavior != nil {
		all = append(append([]Stage{}, p.stages...), p.behavior)
	}

	for i, st := range all {
		res, err := p.runStage(ctx, st, dc)
		if err != nil {
			return nil, err
		}

		if p.shouldEarlyExit(res) {
			reason := fmt.Sprintf("%s stage reported phishing with confidence %.2f", st.Name(), res.Confidence)
			if err := dc.SetEarlyExit(reason); err != nil {
				return nil, err
			}
			if err := p.skipRemaining(dc, all[i+1:], reason); err != nil {
				return nil, err
			}
			state = StateEarlyExited
			break
		}
	}
	if state != StateEarlyExited {
		state = StateCompleted
	}

	if err := p.engine.Finalize(dc); err != nil {
		return nil, fmt.Errorf("finalizing verdict: %w", err)
	}

	log.Printf("[Pipeline] %s: %s verdict=%s confidence=%.2f score=%d/%d",
		dc.DetectionID[:8], state, dc.FinalVerdict, dc.FinalConfidence,
		dc.FinalRiskScore, p.agg.MaxApplicablePoints(dc))
	return dc, nil
}

// lookupLocation is a best-effort pre-step; lookup errors are logged and
// dropped so a dead geolocation service never blocks detection.
func (p *Pipeline) lookupLocation(ctx context.Context, dc *Context) {
	if p.location == nil {
		return
	}
	info, err := p.location.Lookup(ctx, dc.Sender)
	if err != nil {
		log.Printf("[Pipeline] %s: location lookup failed: %v", dc.DetectionID[:8], err)
		return
	}
	if err := dc.SetLocation(info); err != nil {
		log.Printf("[Pipeline] %s: discarding location info: %v", dc.DetectionID[:8], err)
	}
}

// runStage executes one stage and commits its outcome. Flags raised by the
// stage land in the audit trail before the result commits.
func (p *Pipeline) runStage(ctx context.Context, st Stage, dc *Context) (StageResult, error) {
	name := st.Name()
	start := time.Now()
	outcome := st.Analyze(ctx, dc)
	elapsed := time.Since(start)

	for _, f := range outcome.Flags {
		if err := dc.AddFlag(name, f); err != nil {
			return StageResult{}, err
		}
	}

	res := StageResult{
		Stage:      name,
		Verdict:    outcome.Verdict,
		Confidence: outcome.Confidence,
		RiskPoints: p.agg.Contribution(name, outcome),
		Details:    outcome.Details,
		Skipped:    outcome.Skipped,
		SkipReason: outcome.SkipReason,
		Duration:   elapsed,
	}
	if err := dc.RecordStageResult(res); err != nil {
		return StageResult{}, err
	}
	p.agg.Recompute(dc)

	if res.Skipped {
		log.Printf("[Pipeline] %s: stage %s skipped: %s", dc.DetectionID[:8], name, res.SkipReason)
	} else {
		log.Printf("[Pipeline] %s: stage %s verdict=%s confidence=%.2f points=%d (%s)",
			dc.DetectionID[:8], name, res.Verdict, res.Confidence, res.RiskPoints, elapsed.Round(time.Millisecond))
	}
	if p.OnStage != nil {
		p.OnStage(res)
	}
	return res, nil
}

func (p *Pipeline) shouldEarlyExit(res StageResult) bool {
	return !res.Skipped &&
		res.Verdict == VerdictPhishing &&
		p.EarlyExitConfidence > 0 &&
		res.Confidence >= p.EarlyExitConfidence
}

// skipRemaining records a skipped result for every stage the early exit
// bypassed, so the audit trail shows the complete planned sequence.
func (p *Pipeline) skipRemaining(dc *Context, remaining []Stage, reason string) error {
	for _, st := range remaining {
		res := StageResult{
			Stage:      st.Name(),
			Verdict:    VerdictUncertain,
			Skipped:    true,
			SkipReason: "early exit: " + reason,
		}
		if err := dc.RecordStageResult(res); err != nil {
			return err
		}
		if p.OnStage != nil {
			p.OnStage(res)
		}
	}
	return nil
}
