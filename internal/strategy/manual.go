package strategy

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// ManualStrategy wraps an admin's hand-entered resolution. The proposal still
// goes through the normal challenge window so a mistaken admin entry can be
// caught by challengers.
type ManualStrategy struct {
	minBond float64
}

// NewManualStrategy creates a manual strategy with the given proposer bond.
func NewManualStrategy(minBond float64) *ManualStrategy {
	return &ManualStrategy{minBond: minBond}
}

// Type implements Strategy.
func (s *ManualStrategy) Type() domain.StrategyType {
	return domain.StrategyManual
}

// Resolve implements Strategy.
func (s *ManualStrategy) Resolve(_ context.Context, rc Context) (Outcome, error) {
	m := rc.Manual
	if m == nil || m.AdminID == "" || m.Outcome == "" {
		return Outcome{}, fmt.Errorf("strategy: manual resolution needs admin and outcome: %w", domain.ErrInvalidContext)
	}

	return Outcome{
		Outcome:         m.Outcome,
		Confidence:      1.0,
		EvidenceSummary: fmt.Sprintf("manually resolved by %s: %s", m.AdminID, m.Reason),
		Evidence: map[string]any{
			"admin_id": m.AdminID,
			"reason":   m.Reason,
		},
		Bond: s.minBond,
	}, nil
}

var _ Strategy = (*ManualStrategy)(nil)
