// Package scheduler drives the oracle's time-based transitions: finalizing
// proposals whose challenge window passed and kicking off verification for
// markets that became due.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// Resolver is the subset of the oracle service the sweeper drives.
type Resolver interface {
	Finalize(ctx context.Context, requestID string) error
	AutoPropose(ctx context.Context, marketID string) (domain.OracleRequest, bool, error)
}

// Sweeper periodically finalizes expired proposals and auto-proposes
// outcomes for due markets.
type Sweeper struct {
	markets   domain.MarketStore
	requests  domain.RequestStore
	resolver  Resolver
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// NewSweeper creates a Sweeper.
func NewSweeper(markets domain.MarketStore, requests domain.RequestStore, resolver Resolver, batchSize int, logger *slog.Logger) *Sweeper {
	if batchSize < 1 {
		batchSize = 50
	}
	return &Sweeper{
		markets:   markets,
		requests:  requests,
		resolver:  resolver,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "sweeper")),
		now:       time.Now,
	}
}

// Run executes a single sweep pass.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sweeper context cancelled: %w", err)
	}
	finalized, err := s.finalizeExpired(ctx)
	if err != nil {
		return err
	}
	proposed, escalated, err := s.proposeDue(ctx)
	if err != nil {
		return err
	}
	if finalized+proposed+escalated > 0 {
		s.logger.Info("sweep complete",
			slog.Int("finalized", finalized),
			slog.Int("proposed", proposed),
			slog.Int("escalated", escalated),
		)
	}
	return nil
}

// RunLoop runs the sweeper on a repeating interval until the context is
// cancelled.
func (s *Sweeper) RunLoop(ctx context.Context, interval time.Duration) error {
	// Run immediately on start.
	if err := s.Run(ctx); err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				s.logger.Error("sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// finalizeExpired closes unchallenged proposals whose window has passed.
// Individual failures are logged and skipped so one stuck request cannot
// block the rest of the batch.
func (s *Sweeper) finalizeExpired(ctx context.Context) (int, error) {
	reqs, err := s.requests.ListExpiredProposed(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing expired proposals: %w", err)
	}

	finalized := 0
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return finalized, err
		}
		if err := s.resolver.Finalize(ctx, req.ID); err != nil {
			// Another sweep or an admin may have raced us.
			if errors.Is(err, domain.ErrNotChallengeable) || errors.Is(err, domain.ErrDisputeOpen) {
				continue
			}
			s.logger.Error("failed to finalize request",
				slog.String("request_id", req.ID),
				slog.String("market_id", req.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		finalized++
	}
	return finalized, nil
}

// proposeDue runs verification for markets past their close time that have
// no active resolution request yet.
func (s *Sweeper) proposeDue(ctx context.Context) (proposed, escalated int, err error) {
	markets, err := s.markets.ListDueForResolution(ctx, s.now(), s.batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("listing due markets: %w", err)
	}

	for _, market := range markets {
		if err := ctx.Err(); err != nil {
			return proposed, escalated, err
		}
		req, ok, err := s.resolver.AutoPropose(ctx, market.ID)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrMarketResolved) || errors.Is(err, domain.ErrLockHeld) {
				continue
			}
			s.logger.Error("auto-propose failed",
				slog.String("market_id", market.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !ok {
			escalated++
			continue
		}
		s.logger.Info("auto-proposed outcome",
			slog.String("market_id", market.ID),
			slog.String("request_id", req.ID),
			slog.String("outcome", req.ProposedOutcome),
		)
		proposed++
	}
	return proposed, escalated, nil
}
