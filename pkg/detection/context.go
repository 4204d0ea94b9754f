package detection

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyMessage is returned when a detection is requested for a
	// message with no analyzable text.
	ErrEmptyMessage = errors.New("detection: message text is empty")

	// ErrInvalidSender is returned when the sender identifier is empty or
	// contains control characters.
	ErrInvalidSender = errors.New("detection: sender identifier is invalid")

	// ErrDuplicateStage is returned when a result is recorded twice for
	// the same stage name within one detection.
	ErrDuplicateStage = errors.New("detection: stage result already recorded")

	// ErrFrozenContext is returned on any mutation attempt after the final
	// verdict has been set.
	ErrFrozenContext = errors.New("detection: context is frozen")
)

// Flag is a timestamped indicator committed to the evidence context.
type Flag struct {
	Timestamp   time.Time    `json:"timestamp"`
	Stage       string       `json:"stage"`
	Description string       `json:"description"`
	Weight      int          `json:"weight"`
	Polarity    FlagPolarity `json:"polarity"`
}

// StageResult is a committed, immutable record of one stage's analysis.
// RiskPoints is the aggregator's contribution for the stage, not a value the
// stage chose.
type StageResult struct {
	Stage      string         `json:"stage"`
	Verdict    Verdict        `json:"verdict"`
	Confidence float64        `json:"confidence"`
	RiskPoints int            `json:"risk_points"`
	Details    map[string]any `json:"details,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Duration   time.Duration  `json:"duration_ns,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// AuditEvent is one entry in the context's mutation journal.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
}

// LocationInfo holds best-effort geographic context gathered before the
// stages run. All fields may be empty when lookups fail.
type LocationInfo struct {
	SenderCountry string `json:"sender_country,omitempty"`
	SenderCarrier string `json:"sender_carrier,omitempty"`
	NumberType    string `json:"number_type,omitempty"`
	SenderValid   bool   `json:"sender_valid,omitempty"`
	HostIP        string `json:"host_ip,omitempty"`
	HostCountry   string `json:"host_country,omitempty"`
	HostCity      string `json:"host_city,omitempty"`
	HostISP       string `json:"host_isp,omitempty"`
	Mismatch      bool   `json:"mismatch,omitempty"`
}

// Context is the shared evidence record for one detection run. Stages and the
// pipeline mutate it only through its methods; once the verdict engine calls
// Freeze, every further mutation fails with ErrFrozenContext.
type Context struct {
	DetectionID string    `json:"detection_id"`
	CreatedAt   time.Time `json:"created_at"`
	Sender      string    `json:"sender"`
	MessageText string    `json:"message_text"`

	ExtractedURLs []string          `json:"extracted_urls,omitempty"`
	ExpandedURLs  map[string]string `json:"expanded_urls,omitempty"`
	ShortenerUsed bool              `json:"shortener_used,omitempty"`

	Location *LocationInfo `json:"location,omitempty"`

	StageResults map[string]StageResult `json:"stage_results"`
	StageOrder   []string               `json:"stage_order"`

	RedFlags   []Flag `json:"red_flags,omitempty"`
	GreenFlags []Flag `json:"green_flags,omitempty"`

	RunningRiskScore int    `json:"running_risk_score"`
	EarlyExitReason  string `json:"early_exit_reason,omitempty"`

	FinalVerdict    Verdict `json:"final_verdict,omitempty"`
	FinalConfidence float64 `json:"final_confidence,omitempty"`
	FinalRiskScore  int     `json:"final_risk_score,omitempty"`
	NormalizedScore int     `json:"normalized_score,omitempty"`

	Journal []AuditEvent `json:"journal,omitempty"`

	// Frozen is set exactly once by Freeze. Loaded historical contexts
	// arrive frozen.
	Frozen bool `json:"frozen,omitempty"`
}

// NewContext validates the raw inputs and builds a fresh evidence context.
// Validation failures happen here, before any detection state exists.
func NewContext(sender, message string) (*Context, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return nil, ErrInvalidSender
	}
	for _, r := range sender {
		if r < 0x20 || r == 0x7f {
			return nil, ErrInvalidSender
		}
	}

	dc := &Context{
		DetectionID:  uuid.New().String(),
		CreatedAt:    time.Now().UTC(),
		Sender:       sender,
		MessageText:  message,
		StageResults: make(map[string]StageResult),
		ExpandedURLs: make(map[string]string),
	}
	dc.journal("pipeline", "context_created", fmt.Sprintf("sender=%s chars=%d", sender, len(message)))
	return dc, nil
}

func (dc *Context) journal(actor, action, detail string) {
	dc.Journal = append(dc.Journal, AuditEvent{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		Detail:    detail,
	})
}

// SetLocation attaches the pre-stage location lookup result. Write-once.
func (dc *Context) SetLocation(info *LocationInfo) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	if dc.Location != nil {
		return fmt.Errorf("detection: location info already set")
	}
	dc.Location = info
	if info != nil {
		dc.journal("pipeline", "location_set",
			fmt.Sprintf("sender_country=%s host_country=%s mismatch=%v",
				info.SenderCountry, info.HostCountry, info.Mismatch))
	}
	return nil
}

// AddExtractedURLs appends URLs discovered by a stage, deduplicating against
// what is already known.
func (dc *Context) AddExtractedURLs(stage string, urls ...string) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	for _, u := range urls {
		if u == "" || dc.hasURL(u) {
			continue
		}
		dc.ExtractedURLs = append(dc.ExtractedURLs, u)
		dc.journal(stage, "url_extracted", u)
	}
	return nil
}

func (dc *Context) hasURL(u string) bool {
	for _, known := range dc.ExtractedURLs {
		if known == u {
			return true
		}
	}
	return false
}

// SetExpandedURL records the resolved destination of a shortened or
// redirecting URL.
func (dc *Context) SetExpandedURL(stage, original, expanded string) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	if dc.ExpandedURLs == nil {
		dc.ExpandedURLs = make(map[string]string)
	}
	dc.ExpandedURLs[original] = expanded
	dc.journal(stage, "url_expanded", fmt.Sprintf("%s -> %s", original, expanded))
	return nil
}

// MarkShortenerUsed notes that at least one extracted URL uses a known
// shortening service.
func (dc *Context) MarkShortenerUsed(stage string) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	if !dc.ShortenerUsed {
		dc.ShortenerUsed = true
		dc.journal(stage, "shortener_detected", "")
	}
	return nil
}

// RecordStageResult commits a stage result. Each stage name may be recorded
// at most once per detection; a duplicate is a pipeline bug and fails with
// ErrDuplicateStage.
func (dc *Context) RecordStageResult(res StageResult) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	if _, exists := dc.StageResults[res.Stage]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStage, res.Stage)
	}
	if res.RecordedAt.IsZero() {
		res.RecordedAt = time.Now().UTC()
	}
	dc.StageResults[res.Stage] = res
	dc.StageOrder = append(dc.StageOrder, res.Stage)
	action := "stage_committed"
	detail := fmt.Sprintf("%s verdict=%s confidence=%.2f points=%d", res.Stage, res.Verdict, res.Confidence, res.RiskPoints)
	if res.Skipped {
		action = "stage_skipped"
		detail = fmt.Sprintf("%s reason=%s", res.Stage, res.SkipReason)
	}
	dc.journal("pipeline", action, detail)
	return nil
}

// AddFlag appends an indicator to the red or green flag list.
func (dc *Context) AddFlag(stage string, f OutcomeFlag) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	flag := Flag{
		Timestamp:   time.Now().UTC(),
		Stage:       stage,
		Description: f.Description,
		Weight:      f.Weight,
		Polarity:    f.Polarity,
	}
	if f.Polarity == FlagGreen {
		dc.GreenFlags = append(dc.GreenFlags, flag)
	} else {
		flag.Polarity = FlagRed
		dc.RedFlags = append(dc.RedFlags, flag)
	}
	dc.journal(stage, "flag_"+string(flag.Polarity), f.Description)
	return nil
}

// SetEarlyExit records that the pipeline stopped before running all stages.
func (dc *Context) SetEarlyExit(reason string) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	dc.EarlyExitReason = reason
	dc.journal("pipeline", "early_exit", reason)
	return nil
}

// setFinal is called by the verdict engine only. It records the final
// classification and freezes the context in one step.
func (dc *Context) setFinal(v Verdict, confidence float64, score, normalized int) error {
	if dc.Frozen {
		return ErrFrozenContext
	}
	dc.FinalVerdict = v
	dc.FinalConfidence = confidence
	dc.FinalRiskScore = score
	dc.NormalizedScore = normalized
	dc.journal("verdict", "final_verdict",
		fmt.Sprintf("verdict=%s confidence=%.2f score=%d normalized=%d", v, confidence, score, normalized))
	dc.Frozen = true
	return nil
}

// CommittedResults returns non-skipped stage results in commit order.
func (dc *Context) CommittedResults() []StageResult {
	out := make([]StageResult, 0, len(dc.StageOrder))
	for _, name := range dc.StageOrder {
		res := dc.StageResults[name]
		if res.Skipped {
			continue
		}
		out = append(out, res)
	}
	return out
}

// StageRan reports whether the named stage committed a non-skipped result.
func (dc *Context) StageRan(name string) bool {
	res, ok := dc.StageResults[name]
	return ok && !res.Skipped
}

// PrimaryURL returns the first extracted URL, preferring its expanded form
// when one is known.
func (dc *Context) PrimaryURL() string {
	if len(dc.ExtractedURLs) == 0 {
		return ""
	}
	u := dc.ExtractedURLs[0]
	if expanded, ok := dc.ExpandedURLs[u]; ok && expanded != "" {
		return expanded
	}
	return u
}
