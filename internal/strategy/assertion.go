package strategy

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// AssertionStrategy is the pure optimistic path: anyone may assert an
// outcome by staking at least the minimum bond, and the challenge window is
// the only verification. The oracle service records the assertion in its
// append-only log as a side effect.
type AssertionStrategy struct {
	minBond float64
}

// NewAssertionStrategy creates an assertion strategy with the given bond floor.
func NewAssertionStrategy(minBond float64) *AssertionStrategy {
	return &AssertionStrategy{minBond: minBond}
}

// Type implements Strategy.
func (s *AssertionStrategy) Type() domain.StrategyType {
	return domain.StrategyAssertion
}

// Resolve implements Strategy.
func (s *AssertionStrategy) Resolve(_ context.Context, rc Context) (Outcome, error) {
	a := rc.Assertion
	if a == nil || a.AsserterID == "" || a.Outcome == "" {
		return Outcome{}, fmt.Errorf("strategy: assertion needs asserter and outcome: %w", domain.ErrInvalidContext)
	}

	bond := a.Bond
	if bond < s.minBond {
		bond = s.minBond
	}

	// Full confidence pending challenge: the window, not the strategy, is
	// what can still knock the assertion down.
	return Outcome{
		Outcome:         a.Outcome,
		Confidence:      1.0,
		EvidenceSummary: fmt.Sprintf("asserted by %s with bond %.2f", a.AsserterID, bond),
		Evidence: map[string]any{
			"asserter_id": a.AsserterID,
		},
		Bond: bond,
		Effects: []Effect{
			{
				Kind:  EffectAuditEvent,
				Event: "assertion_recorded",
				Detail: map[string]any{
					"market_id":   rc.Market.ID,
					"asserter_id": a.AsserterID,
					"bond":        bond,
				},
			},
		},
	}, nil
}

var _ Strategy = (*AssertionStrategy)(nil)
