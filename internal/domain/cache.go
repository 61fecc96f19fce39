package domain

import (
	"context"
	"time"
)

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// ResultCache stores recent workflow results keyed by market.
type ResultCache interface {
	Set(ctx context.Context, marketID string, res WorkflowResult, ttl time.Duration) error
	Get(ctx context.Context, marketID string) (WorkflowResult, error)
	Invalidate(ctx context.Context, marketID string) error
}

// SignalBus provides pub/sub for resolution lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
