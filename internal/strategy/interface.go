// Package strategy defines the pluggable resolution strategies and their
// registry. Each strategy turns a market plus strategy-specific input into a
// proposed outcome; the oracle service owns every state transition and side
// effect that follows.
package strategy

import (
	"context"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// Strategy defines the contract for resolution strategies.
type Strategy interface {
	Type() domain.StrategyType
	// Resolve produces a proposed outcome for the market described by rc.
	// It returns domain.ErrInvalidContext when rc lacks the input this
	// strategy needs.
	Resolve(ctx context.Context, rc Context) (Outcome, error)
}

// Context carries the input for one resolution attempt. Exactly one of the
// per-strategy fields is set, matching the market's strategy type.
type Context struct {
	Market domain.Market

	Manual      *ManualContext
	API         *APIContext
	AI          *AIContext
	Centralized *CentralizedContext
	Assertion   *AssertionContext
}

// ManualContext is an admin's hand-entered resolution.
type ManualContext struct {
	AdminID string
	Outcome string
	Reason  string
}

// APIContext points at an external endpoint whose response decides the market.
type APIContext struct {
	Endpoint string
	// Path is a dot-notation path into the JSON response body.
	Path string
	// Expected is compared against the value at Path; equality means yes.
	Expected string
	Headers  map[string]string
}

// AIContext asks the inference gateway to research and decide the question.
type AIContext struct {
	Question    string
	Description string
	SourceHints []string
}

// CentralizedContext is an admin resolution backed by multi-signature
// approval.
type CentralizedContext struct {
	AdminID    string
	Outcome    string
	Reason     string
	Signatures []string
}

// AssertionContext is an optimistic assertion: the asserter stakes a bond on
// an outcome and the challenge window does the verifying.
type AssertionContext struct {
	AsserterID string
	Outcome    string
	Bond       float64
}

// EffectKind enumerates side effects a strategy may request. The oracle
// service executes them; strategies never touch stores or buses directly.
type EffectKind string

const (
	// EffectSkipWindow finalizes the outcome immediately instead of opening
	// a challenge window.
	EffectSkipWindow EffectKind = "skip_window"
	// EffectNotifyAdmins pushes an operator notification.
	EffectNotifyAdmins EffectKind = "notify_admins"
	// EffectAuditEvent appends an extra audit log entry.
	EffectAuditEvent EffectKind = "audit_event"
)

// Effect is one side effect requested by a strategy.
type Effect struct {
	Kind   EffectKind
	Event  string
	Detail map[string]any
}

// Outcome is a strategy's proposed resolution.
type Outcome struct {
	Outcome         string
	Confidence      float64 // 0-1
	EvidenceSummary string
	EvidenceURLs    []string
	Evidence        map[string]any
	// Bond is the stake the proposer must lock. Zero means the oracle
	// service applies its configured minimum unless an effect skips the
	// window entirely.
	Bond    float64
	Effects []Effect
}

// SkipsWindow reports whether the outcome requests immediate finalization.
func (o Outcome) SkipsWindow() bool {
	for _, e := range o.Effects {
		if e.Kind == EffectSkipWindow {
			return true
		}
	}
	return false
}
