package strategy

import (
	"context"
	"fmt"

	oraclecrypto "github.com/alanyoungcy/oraclebot/internal/crypto"
	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// CentralizedStrategy resolves a market on multi-signature admin authority.
// A quorum of admin signatures over the resolution digest replaces the
// economic guarantee of a bond, so the outcome carries no stake and skips
// the challenge window.
type CentralizedStrategy struct {
	verifier *oraclecrypto.MultiSigVerifier
}

// NewCentralizedStrategy creates a centralized strategy over the given
// verifier.
func NewCentralizedStrategy(verifier *oraclecrypto.MultiSigVerifier) *CentralizedStrategy {
	return &CentralizedStrategy{verifier: verifier}
}

// Type implements Strategy.
func (s *CentralizedStrategy) Type() domain.StrategyType {
	return domain.StrategyCentralized
}

// Resolve implements Strategy. It verifies the signature quorum and returns
// an outcome that requests immediate finalization; the oracle service
// executes the effects.
func (s *CentralizedStrategy) Resolve(_ context.Context, rc Context) (Outcome, error) {
	c := rc.Centralized
	if c == nil || c.AdminID == "" || c.Outcome == "" {
		return Outcome{}, fmt.Errorf("strategy: centralized resolution needs admin and outcome: %w", domain.ErrInvalidContext)
	}

	signers, err := s.verifier.Verify(rc.Market.ID, c.Outcome, c.Signatures)
	if err != nil {
		return Outcome{}, err
	}

	signerHexes := make([]string, len(signers))
	for i, addr := range signers {
		signerHexes[i] = addr.Hex()
	}

	return Outcome{
		Outcome:         c.Outcome,
		Confidence:      1.0,
		EvidenceSummary: fmt.Sprintf("centrally resolved by %s with %d admin signatures: %s", c.AdminID, len(signers), c.Reason),
		Evidence: map[string]any{
			"admin_id": c.AdminID,
			"reason":   c.Reason,
			"signers":  signerHexes,
		},
		Bond: 0,
		Effects: []Effect{
			{Kind: EffectSkipWindow},
			{
				Kind:  EffectAuditEvent,
				Event: "multisig_verified",
				Detail: map[string]any{
					"market_id": rc.Market.ID,
					"signers":   signerHexes,
					"threshold": s.verifier.Threshold(),
				},
			},
		},
	}, nil
}

var _ Strategy = (*CentralizedStrategy)(nil)
