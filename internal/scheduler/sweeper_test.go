package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

type stubMarkets struct {
	domain.MarketStore
	due []domain.Market
	err error
}

func (s *stubMarkets) ListDueForResolution(_ context.Context, _ time.Time, _ int) ([]domain.Market, error) {
	return s.due, s.err
}

type stubRequests struct {
	domain.RequestStore
	expired []domain.OracleRequest
	err     error
}

func (s *stubRequests) ListExpiredProposed(_ context.Context, _ time.Time, _ int) ([]domain.OracleRequest, error) {
	return s.expired, s.err
}

type resolverCall struct {
	op string // "finalize" or "propose"
	id string
}

type stubResolver struct {
	calls       []resolverCall
	finalizeErr map[string]error
	proposeErr  map[string]error
	escalate    map[string]bool
}

func (s *stubResolver) Finalize(_ context.Context, requestID string) error {
	s.calls = append(s.calls, resolverCall{op: "finalize", id: requestID})
	return s.finalizeErr[requestID]
}

func (s *stubResolver) AutoPropose(_ context.Context, marketID string) (domain.OracleRequest, bool, error) {
	s.calls = append(s.calls, resolverCall{op: "propose", id: marketID})
	if err := s.proposeErr[marketID]; err != nil {
		return domain.OracleRequest{}, false, err
	}
	if s.escalate[marketID] {
		return domain.OracleRequest{}, false, nil
	}
	return domain.OracleRequest{ID: "req-" + marketID, MarketID: marketID, ProposedOutcome: domain.OutcomeYes}, true, nil
}

func newSweeper(markets *stubMarkets, requests *stubRequests, resolver *stubResolver) *Sweeper {
	return NewSweeper(markets, requests, resolver, 10, slog.New(slog.DiscardHandler))
}

func TestRunFinalizesExpiredAndProposesDue(t *testing.T) {
	markets := &stubMarkets{due: []domain.Market{{ID: "m1"}, {ID: "m2"}}}
	requests := &stubRequests{expired: []domain.OracleRequest{{ID: "r1"}, {ID: "r2"}}}
	resolver := &stubResolver{}

	sw := newSweeper(markets, requests, resolver)
	require.NoError(t, sw.Run(context.Background()))

	assert.Equal(t, []resolverCall{
		{op: "finalize", id: "r1"},
		{op: "finalize", id: "r2"},
		{op: "propose", id: "m1"},
		{op: "propose", id: "m2"},
	}, resolver.calls)
}

func TestRunSkipsRacedRequests(t *testing.T) {
	requests := &stubRequests{expired: []domain.OracleRequest{{ID: "r1"}, {ID: "r2"}, {ID: "r3"}}}
	resolver := &stubResolver{finalizeErr: map[string]error{
		"r1": domain.ErrNotChallengeable,
		"r2": domain.ErrDisputeOpen,
	}}

	sw := newSweeper(&stubMarkets{}, requests, resolver)
	require.NoError(t, sw.Run(context.Background()))
	assert.Len(t, resolver.calls, 3, "raced requests are skipped, not fatal")
}

func TestRunContinuesPastProposeFailures(t *testing.T) {
	markets := &stubMarkets{due: []domain.Market{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}}
	resolver := &stubResolver{
		proposeErr: map[string]error{
			"m1": domain.ErrAlreadyExists,
			"m2": errors.New("workflow lookup failed"),
		},
	}

	sw := newSweeper(markets, &stubRequests{}, resolver)
	require.NoError(t, sw.Run(context.Background()))
	assert.Len(t, resolver.calls, 3, "one bad market must not block the batch")
}

func TestRunSurfacesListErrors(t *testing.T) {
	sw := newSweeper(&stubMarkets{}, &stubRequests{err: errors.New("db down")}, &stubResolver{})
	assert.Error(t, sw.Run(context.Background()))

	sw = newSweeper(&stubMarkets{err: errors.New("db down")}, &stubRequests{}, &stubResolver{})
	assert.Error(t, sw.Run(context.Background()))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := &stubResolver{}
	sw := newSweeper(&stubMarkets{}, &stubRequests{expired: []domain.OracleRequest{{ID: "r1"}}}, resolver)
	assert.Error(t, sw.Run(ctx))
	assert.Empty(t, resolver.calls)
}

func TestRunLoopReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	sw := newSweeper(&stubMarkets{}, &stubRequests{}, &stubResolver{})
	done := make(chan error, 1)
	go func() { done <- sw.RunLoop(ctx, 10*time.Millisecond) }()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}
}
