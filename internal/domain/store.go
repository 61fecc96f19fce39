package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	Upsert(ctx context.Context, market Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	SetStatus(ctx context.Context, id string, status MarketStatus) error
	SetResolved(ctx context.Context, id, winningOutcome string, at time.Time) error
	ListByStatus(ctx context.Context, status MarketStatus, opts ListOpts) ([]Market, error)
	ListDueForResolution(ctx context.Context, now time.Time, limit int) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// RequestStore persists oracle resolution requests.
type RequestStore interface {
	Create(ctx context.Context, req OracleRequest) error
	GetByID(ctx context.Context, id string) (OracleRequest, error)
	GetActiveByMarket(ctx context.Context, marketID string) (OracleRequest, error)
	// TransitionStatus moves a request from one status to another and returns
	// ErrNotChallengeable when the row is no longer in the expected state.
	TransitionStatus(ctx context.Context, id string, from, to RequestStatus) error
	SetOutcome(ctx context.Context, id, outcome string, confidence float64) error
	ListExpiredProposed(ctx context.Context, now time.Time, limit int) ([]OracleRequest, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]OracleRequest, error)
	ListByStatus(ctx context.Context, status RequestStatus, opts ListOpts) ([]OracleRequest, error)
}

// DisputeStore persists challenges against proposed outcomes.
type DisputeStore interface {
	Create(ctx context.Context, d OracleDispute) error
	GetByID(ctx context.Context, id string) (OracleDispute, error)
	GetOpenByRequest(ctx context.Context, requestID string) (OracleDispute, error)
	Resolve(ctx context.Context, id string, verdict DisputeVerdict, resolvedBy string, at time.Time) error
	ListOpen(ctx context.Context, opts ListOpts) ([]OracleDispute, error)
}

// AssertionStore persists the optimistic-assertion log.
type AssertionStore interface {
	Insert(ctx context.Context, a Assertion) error
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]Assertion, error)
}

// WorkflowStore persists verification workflow definitions.
type WorkflowStore interface {
	Upsert(ctx context.Context, wf VerificationWorkflow) error
	GetByID(ctx context.Context, id string) (VerificationWorkflow, error)
	GetByCategory(ctx context.Context, category string) (VerificationWorkflow, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	List(ctx context.Context, opts ListOpts) ([]VerificationWorkflow, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
