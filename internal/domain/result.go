package domain

import "time"

// Outcome values produced by verification and strategies. Markets only ever
// finalize on yes/no; uncertain and escalated route to humans.
const (
	OutcomeYes       = "yes"
	OutcomeNo        = "no"
	OutcomeUncertain = "uncertain"
	OutcomeEscalated = "escalated"
)

// SourceResult is the answer (or failure) of one verification source.
type SourceResult struct {
	SourceID   string
	SourceName string
	Outcome    string
	Confidence float64 // 0-100
	Evidence   map[string]any
	Err        string // empty on success
	Attempts   int
	Elapsed    time.Duration
}

// OK reports whether the source produced a usable answer.
func (r SourceResult) OK() bool { return r.Err == "" }

// StepResult is the combined verdict of one workflow step.
type StepResult struct {
	StepID     string
	StepName   string
	Outcome    string
	Confidence float64
	Passed     bool
	Action     StepAction
	Sources    []SourceResult
}

// WorkflowResult is the final verdict of an orchestrated verification run.
// MismatchDetected is set when both yes and no camps independently cross the
// strong-confidence bar, which signals contradictory evidence rather than a
// close call. The flag rides alongside the verdict: a run can resolve
// confidently and still carry a mismatch for reviewers.
type WorkflowResult struct {
	WorkflowID       string
	MarketID         string
	Outcome          string
	Confidence       float64 // 0-100
	Reasoning        string
	Escalated        bool
	EscalationReason string
	MismatchDetected bool
	MismatchDetail   string
	Steps            []StepResult
	StartedAt        time.Time
	CompletedAt      time.Time
}
