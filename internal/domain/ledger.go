package domain

import "context"

// BondLedger holds and releases resolution bonds. Lock reserves funds from
// the owner's balance; Release returns them; Slash forfeits the locked
// amount and credits a share of it to the winner.
type BondLedger interface {
	Lock(ctx context.Context, ownerID, ref string, amount float64, currency string) error
	Release(ctx context.Context, ownerID, ref string) error
	Slash(ctx context.Context, ownerID, ref, winnerID string, winnerShare float64) error
}

// SettlementEngine pays out a resolved market to its position holders.
type SettlementEngine interface {
	Settle(ctx context.Context, marketID, winningOutcome string) error
}

// InferenceRequest is one prompt sent to a model provider.
type InferenceRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// InferenceGateway runs model completions for AI-backed verification.
type InferenceGateway interface {
	Complete(ctx context.Context, req InferenceRequest) (string, error)
}
