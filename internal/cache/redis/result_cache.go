package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// ResultCache implements domain.ResultCache using Redis string keys with
// JSON-serialized WorkflowResult data.
//
// Key schema:
//
//	verify:result:{marketID} - JSON WorkflowResult
type ResultCache struct {
	rdb *redis.Client
}

// NewResultCache creates a ResultCache backed by the given Client.
func NewResultCache(c *Client) *ResultCache {
	return &ResultCache{rdb: c.Underlying()}
}

func resultKey(marketID string) string { return "verify:result:" + marketID }

// Set stores a workflow result for a market with the given TTL.
func (rc *ResultCache) Set(ctx context.Context, marketID string, res domain.WorkflowResult, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal result for %s: %w", marketID, err)
	}
	if err := rc.rdb.Set(ctx, resultKey(marketID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set result for %s: %w", marketID, err)
	}
	return nil
}

// Get retrieves the cached workflow result for a market.
// It returns domain.ErrNotFound when the key does not exist.
func (rc *ResultCache) Get(ctx context.Context, marketID string) (domain.WorkflowResult, error) {
	data, err := rc.rdb.Get(ctx, resultKey(marketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.WorkflowResult{}, domain.ErrNotFound
		}
		return domain.WorkflowResult{}, fmt.Errorf("redis: get result for %s: %w", marketID, err)
	}

	var res domain.WorkflowResult
	if err := json.Unmarshal(data, &res); err != nil {
		return domain.WorkflowResult{}, fmt.Errorf("redis: unmarshal result for %s: %w", marketID, err)
	}
	return res, nil
}

// Invalidate removes the cached result for a market.
func (rc *ResultCache) Invalidate(ctx context.Context, marketID string) error {
	if err := rc.rdb.Del(ctx, resultKey(marketID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate result for %s: %w", marketID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
