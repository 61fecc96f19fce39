package oracle

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/strategy"
	"github.com/alanyoungcy/oraclebot/internal/verify"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memMarkets struct {
	rows map[string]domain.Market
}

func (m *memMarkets) Upsert(_ context.Context, market domain.Market) error {
	m.rows[market.ID] = market
	return nil
}

func (m *memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	row, ok := m.rows[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memMarkets) SetStatus(_ context.Context, id string, status domain.MarketStatus) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = status
	m.rows[id] = row
	return nil
}

func (m *memMarkets) SetResolved(_ context.Context, id, winningOutcome string, at time.Time) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Status = domain.MarketStatusResolved
	row.WinningOutcome = winningOutcome
	row.ResolvedAt = &at
	m.rows[id] = row
	return nil
}

func (m *memMarkets) ListByStatus(_ context.Context, status domain.MarketStatus, _ domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, row := range m.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memMarkets) ListDueForResolution(_ context.Context, _ time.Time, _ int) ([]domain.Market, error) {
	return nil, nil
}

func (m *memMarkets) Count(_ context.Context) (int64, error) {
	return int64(len(m.rows)), nil
}

type memRequests struct {
	rows map[string]domain.OracleRequest
}

func (m *memRequests) Create(_ context.Context, req domain.OracleRequest) error {
	if _, ok := m.rows[req.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.rows[req.ID] = req
	return nil
}

func (m *memRequests) GetByID(_ context.Context, id string) (domain.OracleRequest, error) {
	row, ok := m.rows[id]
	if !ok {
		return domain.OracleRequest{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memRequests) GetActiveByMarket(_ context.Context, marketID string) (domain.OracleRequest, error) {
	for _, row := range m.rows {
		if row.MarketID == marketID && !row.Status.Terminal() {
			return row, nil
		}
	}
	return domain.OracleRequest{}, domain.ErrNotFound
}

func (m *memRequests) TransitionStatus(_ context.Context, id string, from, to domain.RequestStatus) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != from {
		return domain.ErrNotChallengeable
	}
	row.Status = to
	m.rows[id] = row
	return nil
}

func (m *memRequests) SetOutcome(_ context.Context, id, outcome string, confidence float64) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.ProposedOutcome = outcome
	row.ConfidenceScore = confidence
	m.rows[id] = row
	return nil
}

func (m *memRequests) ListExpiredProposed(_ context.Context, now time.Time, _ int) ([]domain.OracleRequest, error) {
	var out []domain.OracleRequest
	for _, row := range m.rows {
		if row.Status == domain.RequestStatusProposed && !row.WindowOpen(now) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRequests) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.OracleRequest, error) {
	var out []domain.OracleRequest
	for _, row := range m.rows {
		if row.MarketID == marketID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memRequests) ListByStatus(_ context.Context, status domain.RequestStatus, _ domain.ListOpts) ([]domain.OracleRequest, error) {
	var out []domain.OracleRequest
	for _, row := range m.rows {
		if row.Status == status {
			out = append(out, row)
		}
	}
	return out, nil
}

type memDisputes struct {
	rows map[string]domain.OracleDispute
}

func (m *memDisputes) Create(_ context.Context, d domain.OracleDispute) error {
	if _, ok := m.rows[d.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.rows[d.ID] = d
	return nil
}

func (m *memDisputes) GetByID(_ context.Context, id string) (domain.OracleDispute, error) {
	row, ok := m.rows[id]
	if !ok {
		return domain.OracleDispute{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memDisputes) GetOpenByRequest(_ context.Context, requestID string) (domain.OracleDispute, error) {
	for _, row := range m.rows {
		if row.RequestID == requestID && row.Status == domain.DisputeStatusOpen {
			return row, nil
		}
	}
	return domain.OracleDispute{}, domain.ErrNotFound
}

func (m *memDisputes) Resolve(_ context.Context, id string, verdict domain.DisputeVerdict, resolvedBy string, at time.Time) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if row.Status != domain.DisputeStatusOpen {
		return domain.ErrDisputeClosed
	}
	row.Status = domain.DisputeStatusResolved
	row.Verdict = verdict
	row.ResolvedBy = resolvedBy
	row.ResolvedAt = &at
	m.rows[id] = row
	return nil
}

func (m *memDisputes) ListOpen(_ context.Context, _ domain.ListOpts) ([]domain.OracleDispute, error) {
	var out []domain.OracleDispute
	for _, row := range m.rows {
		if row.Status == domain.DisputeStatusOpen {
			out = append(out, row)
		}
	}
	return out, nil
}

type memAssertions struct {
	rows []domain.Assertion
}

func (m *memAssertions) Insert(_ context.Context, a domain.Assertion) error {
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAssertions) ListByMarket(_ context.Context, marketID string, _ domain.ListOpts) ([]domain.Assertion, error) {
	var out []domain.Assertion
	for _, a := range m.rows {
		if a.MarketID == marketID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memWorkflows struct {
	rows map[string]domain.VerificationWorkflow
}

func (m *memWorkflows) Upsert(_ context.Context, wf domain.VerificationWorkflow) error {
	m.rows[wf.ID] = wf
	return nil
}

func (m *memWorkflows) GetByID(_ context.Context, id string) (domain.VerificationWorkflow, error) {
	row, ok := m.rows[id]
	if !ok {
		return domain.VerificationWorkflow{}, domain.ErrNotFound
	}
	return row, nil
}

func (m *memWorkflows) GetByCategory(_ context.Context, category string) (domain.VerificationWorkflow, error) {
	for _, row := range m.rows {
		if row.Category == category && row.Enabled {
			return row, nil
		}
	}
	return domain.VerificationWorkflow{}, domain.ErrNotFound
}

func (m *memWorkflows) SetEnabled(_ context.Context, id string, enabled bool) error {
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Enabled = enabled
	m.rows[id] = row
	return nil
}

func (m *memWorkflows) List(_ context.Context, _ domain.ListOpts) ([]domain.VerificationWorkflow, error) {
	var out []domain.VerificationWorkflow
	for _, row := range m.rows {
		out = append(out, row)
	}
	return out, nil
}

type memAudit struct {
	events []string
}

func (m *memAudit) Log(_ context.Context, event string, _ map[string]any) error {
	m.events = append(m.events, event)
	return nil
}

func (m *memAudit) List(_ context.Context, _ domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

type fakeLocks struct {
	acquired []string
	err      error
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.acquired = append(f.acquired, key)
	return func() {}, nil
}

type lockedBond struct {
	owner    string
	amount   float64
	currency string
}

type slashRec struct {
	owner  string
	ref    string
	winner string
	share  float64
}

type fakeLedger struct {
	locked   map[string]lockedBond // keyed by ref
	released []string
	slashes  []slashRec
	lockErr  error
}

func (f *fakeLedger) Lock(_ context.Context, ownerID, ref string, amount float64, currency string) error {
	if f.lockErr != nil {
		return f.lockErr
	}
	f.locked[ref] = lockedBond{owner: ownerID, amount: amount, currency: currency}
	return nil
}

func (f *fakeLedger) Release(_ context.Context, _, ref string) error {
	f.released = append(f.released, ref)
	return nil
}

func (f *fakeLedger) Slash(_ context.Context, ownerID, ref, winnerID string, winnerShare float64) error {
	f.slashes = append(f.slashes, slashRec{owner: ownerID, ref: ref, winner: winnerID, share: winnerShare})
	return nil
}

type settleCall struct {
	marketID string
	outcome  string
}

type fakeSettler struct {
	calls []settleCall
	err   error
}

func (f *fakeSettler) Settle(_ context.Context, marketID, winningOutcome string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, settleCall{marketID: marketID, outcome: winningOutcome})
	return nil
}

type fakeBus struct {
	published []string // channel names
}

func (f *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	f.published = append(f.published, channel)
	return nil
}

func (f *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return nil, errors.New("not implemented")
}

// instantStrategy resolves immediately without a challenge window, standing
// in for the multi-signature path in state machine tests.
type instantStrategy struct{}

func (instantStrategy) Type() domain.StrategyType { return domain.StrategyCentralized }

func (instantStrategy) Resolve(_ context.Context, rc strategy.Context) (strategy.Outcome, error) {
	if rc.Centralized == nil {
		return strategy.Outcome{}, domain.ErrInvalidContext
	}
	return strategy.Outcome{
		Outcome:    rc.Centralized.Outcome,
		Confidence: 1.0,
		Effects:    []strategy.Effect{{Kind: strategy.EffectSkipWindow}},
	}, nil
}

// answerRunner always returns the same verdict, regardless of source.
type answerRunner struct {
	outcome    string
	confidence float64
	err        error
}

func (r answerRunner) Run(_ context.Context, _ domain.VerificationSource, _ domain.Market) (string, float64, map[string]any, error) {
	if r.err != nil {
		return "", 0, nil, r.err
	}
	return r.outcome, r.confidence, nil, nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type fixture struct {
	svc      *Service
	markets  *memMarkets
	requests *memRequests
	disputes *memDisputes
	asserts  *memAssertions
	flows    *memWorkflows
	audit    *memAudit
	ledger   *fakeLedger
	settler  *fakeSettler
	bus      *fakeBus
	clock    *time.Time
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, runner verify.SourceRunner) *fixture {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)

	registry := strategy.NewRegistry()
	registry.Register(strategy.NewManualStrategy(50))
	registry.Register(strategy.NewAssertionStrategy(50))
	registry.Register(instantStrategy{})

	runners := map[domain.VerificationMethod]verify.SourceRunner{}
	if runner != nil {
		runners[domain.MethodSportsAPI] = runner
	}
	verifier := verify.New(runners, nil, verify.Config{
		DefaultSourceTimeout: time.Second,
		MismatchBar:          80,
	}, logger)

	clock := testEpoch
	f := &fixture{
		markets:  &memMarkets{rows: map[string]domain.Market{}},
		requests: &memRequests{rows: map[string]domain.OracleRequest{}},
		disputes: &memDisputes{rows: map[string]domain.OracleDispute{}},
		asserts:  &memAssertions{},
		flows:    &memWorkflows{rows: map[string]domain.VerificationWorkflow{}},
		audit:    &memAudit{},
		ledger:   &fakeLedger{locked: map[string]lockedBond{}},
		settler:  &fakeSettler{},
		bus:      &fakeBus{},
		clock:    &clock,
	}
	f.svc = NewService(Deps{
		Markets:    f.markets,
		Requests:   f.requests,
		Disputes:   f.disputes,
		Assertions: f.asserts,
		Workflows:  f.flows,
		Audit:      f.audit,
		Locks:      &fakeLocks{},
		Ledger:     f.ledger,
		Settler:    f.settler,
		Registry:   registry,
		Verifier:   verifier,
		Bus:        f.bus,
		Logger:     logger,
		Now:        func() time.Time { return *f.clock },
	}, ServiceConfig{
		ChallengeWindow:  2 * time.Hour,
		MinBond:          50,
		BondCurrency:     "USDC",
		HighBond:         100,
		LowBond:          50,
		ConfidenceCutoff: 0.9,
		SlashWinnerShare: 0.75,
		LockTTL:          30 * time.Second,
	})
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *fixture) addMarket(id string, st domain.StrategyType) domain.Market {
	closed := testEpoch.Add(-time.Hour)
	m := domain.Market{
		ID:              id,
		Question:        "Will it happen?",
		Category:        "sports",
		StrategyType:    st,
		Status:          domain.MarketStatusClosed,
		TradingClosesAt: &closed,
		CreatedAt:       testEpoch.Add(-24 * time.Hour),
	}
	f.markets.rows[id] = m
	return m
}

func (f *fixture) addWorkflow(category string, threshold float64) domain.VerificationWorkflow {
	wf := domain.VerificationWorkflow{
		ID:       "wf-" + category,
		Name:     category + " check",
		Category: category,
		Steps: []domain.WorkflowStep{{
			ID:   "s1",
			Name: "primary",
			Sources: []domain.VerificationSource{{
				ID:      "src1",
				Name:    "feed",
				Method:  domain.MethodSportsAPI,
				Enabled: true,
				Weight:  1,
			}},
			Logic:              domain.LogicAll,
			RequiredConfidence: 60,
			OnSuccess:          domain.ActionResolve,
			OnFailure:          domain.ActionEscalate,
		}},
		EscalationThreshold: threshold,
		AuditTrail:          true,
		Enabled:             true,
	}
	f.flows.rows[wf.ID] = wf
	return wf
}

func manualCtx(outcome string) strategy.Context {
	return strategy.Context{Manual: &strategy.ManualContext{
		AdminID: "admin-1",
		Outcome: outcome,
		Reason:  "reviewed official result",
	}}
}

// ---------------------------------------------------------------------------
// Propose
// ---------------------------------------------------------------------------

func TestProposeOpensChallengeWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)

	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusProposed, req.Status)
	assert.Equal(t, domain.OutcomeYes, req.ProposedOutcome)
	assert.Equal(t, 50.0, req.BondAmount)
	require.NotNil(t, req.ChallengeWindowEndsAt)
	assert.Equal(t, testEpoch.Add(2*time.Hour), *req.ChallengeWindowEndsAt)

	bond, ok := f.ledger.locked["request:"+req.ID]
	require.True(t, ok, "proposer bond should be locked")
	assert.Equal(t, "admin-1", bond.owner)
	assert.Equal(t, 50.0, bond.amount)
	assert.Equal(t, "USDC", bond.currency)

	assert.Equal(t, domain.MarketStatusAwaitingResolution, f.markets.rows["m1"].Status)
	assert.Contains(t, f.audit.events, EventProposed)
	assert.NotEmpty(t, f.bus.published)
}

func TestProposeRejectsSecondActiveRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)

	_, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	_, err = f.svc.Propose(context.Background(), "m1", "admin-2", manualCtx(domain.OutcomeNo))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestProposeRejectsResolvedMarket(t *testing.T) {
	f := newFixture(t, nil)
	m := f.addMarket("m1", domain.StrategyManual)
	m.Status = domain.MarketStatusResolved
	f.markets.rows["m1"] = m

	_, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	assert.ErrorIs(t, err, domain.ErrMarketResolved)
}

func TestProposeRejectsOpenMarket(t *testing.T) {
	f := newFixture(t, nil)
	m := f.addMarket("m1", domain.StrategyManual)
	closes := testEpoch.Add(time.Hour)
	m.Status = domain.MarketStatusActive
	m.TradingClosesAt = &closes
	f.markets.rows["m1"] = m

	_, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	assert.Error(t, err)
}

func TestProposeSkipWindowFinalizesImmediately(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyCentralized)

	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", strategy.Context{
		Centralized: &strategy.CentralizedContext{AdminID: "admin-1", Outcome: domain.OutcomeNo},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusFinalized, req.Status)
	assert.Nil(t, req.ChallengeWindowEndsAt)
	assert.Zero(t, req.BondAmount)
	assert.Empty(t, f.ledger.locked)

	m := f.markets.rows["m1"]
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, domain.OutcomeNo, m.WinningOutcome)
	require.Len(t, f.settler.calls, 1)
	assert.Equal(t, settleCall{marketID: "m1", outcome: domain.OutcomeNo}, f.settler.calls[0])
}

func TestProposeAssertionRecordsLog(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyAssertion)

	req, err := f.svc.Propose(context.Background(), "m1", "user-3", strategy.Context{
		Assertion: &strategy.AssertionContext{AsserterID: "user-3", Outcome: domain.OutcomeYes, Bond: 500},
	})
	require.NoError(t, err)
	assert.Equal(t, 500.0, req.BondAmount, "asserter's stake is kept above the floor")

	require.Len(t, f.asserts.rows, 1)
	a := f.asserts.rows[0]
	assert.Equal(t, "m1", a.MarketID)
	assert.Equal(t, "user-3", a.AsserterID)
	assert.Equal(t, domain.OutcomeYes, a.Outcome)
	assert.Equal(t, 500.0, a.BondAmount)
}

// ---------------------------------------------------------------------------
// Challenge
// ---------------------------------------------------------------------------

func TestChallengeLocksMatchingBond(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.advance(time.Hour)
	d, err := f.svc.Challenge(context.Background(), req.ID, "user-7", "source says otherwise", domain.OutcomeNo)
	require.NoError(t, err)

	assert.Equal(t, domain.DisputeStatusOpen, d.Status)
	assert.Equal(t, req.BondAmount, d.BondAmount)
	assert.Equal(t, domain.RequestStatusDisputed, f.requests.rows[req.ID].Status)

	bond, ok := f.ledger.locked["dispute:"+d.ID]
	require.True(t, ok, "challenger bond should be locked")
	assert.Equal(t, "user-7", bond.owner)
	assert.Equal(t, req.BondAmount, bond.amount)
	assert.Contains(t, f.audit.events, EventChallenged)
}

func TestChallengeAfterWindowExpires(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.advance(2*time.Hour + time.Minute)
	_, err = f.svc.Challenge(context.Background(), req.ID, "user-7", "too late", "")
	assert.ErrorIs(t, err, domain.ErrWindowExpired)
}

func TestChallengeDisputedRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	_, err = f.svc.Challenge(context.Background(), req.ID, "user-7", "wrong", domain.OutcomeNo)
	require.NoError(t, err)

	_, err = f.svc.Challenge(context.Background(), req.ID, "user-8", "also wrong", domain.OutcomeNo)
	assert.ErrorIs(t, err, domain.ErrNotChallengeable)
}

func TestChallengeRevertsOnLedgerFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.ledger.lockErr = errors.New("insufficient balance")
	_, err = f.svc.Challenge(context.Background(), req.ID, "user-7", "wrong", "")
	require.Error(t, err)

	assert.Equal(t, domain.RequestStatusProposed, f.requests.rows[req.ID].Status,
		"request should roll back to proposed")
	assert.Empty(t, f.disputes.rows)
}

// ---------------------------------------------------------------------------
// Finalize
// ---------------------------------------------------------------------------

func TestFinalizeAfterWindowPasses(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.advance(2*time.Hour + time.Second)
	require.NoError(t, f.svc.Finalize(context.Background(), req.ID))

	assert.Equal(t, domain.RequestStatusFinalized, f.requests.rows[req.ID].Status)
	assert.Contains(t, f.ledger.released, "request:"+req.ID, "proposer bond should be returned")

	m := f.markets.rows["m1"]
	assert.Equal(t, domain.MarketStatusResolved, m.Status)
	assert.Equal(t, domain.OutcomeYes, m.WinningOutcome)
	require.Len(t, f.settler.calls, 1)
	assert.Contains(t, f.audit.events, EventResolved)
}

func TestFinalizeInsideWindow(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.advance(time.Hour)
	assert.ErrorIs(t, f.svc.Finalize(context.Background(), req.ID), domain.ErrWindowActive)
}

func TestFinalizeDisputedRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)
	_, err = f.svc.Challenge(context.Background(), req.ID, "user-7", "wrong", "")
	require.NoError(t, err)

	f.advance(3 * time.Hour)
	assert.ErrorIs(t, f.svc.Finalize(context.Background(), req.ID), domain.ErrDisputeOpen)
}

func TestFinalizeSurfacesSettlementFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)

	f.settler.err = errors.New("payout service down")
	f.advance(3 * time.Hour)
	err = f.svc.Finalize(context.Background(), req.ID)
	require.Error(t, err)

	// The market stays resolved even when settlement fails downstream.
	assert.Equal(t, domain.MarketStatusResolved, f.markets.rows["m1"].Status)
}

// ---------------------------------------------------------------------------
// Adjudicate
// ---------------------------------------------------------------------------

func openDispute(t *testing.T, f *fixture) (domain.OracleRequest, domain.OracleDispute) {
	t.Helper()
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)
	d, err := f.svc.Challenge(context.Background(), req.ID, "user-7", "disagree", domain.OutcomeNo)
	require.NoError(t, err)
	return req, d
}

func TestAdjudicateUpheld(t *testing.T) {
	f := newFixture(t, nil)
	req, d := openDispute(t, f)

	require.NoError(t, f.svc.Adjudicate(context.Background(), d.ID, domain.VerdictUpheld, "arbiter-1"))

	require.Len(t, f.ledger.slashes, 1)
	slash := f.ledger.slashes[0]
	assert.Equal(t, "user-7", slash.owner, "challenger forfeits the bond")
	assert.Equal(t, "dispute:"+d.ID, slash.ref)
	assert.Equal(t, "admin-1", slash.winner)
	assert.Equal(t, 0.75, slash.share)

	assert.Contains(t, f.ledger.released, "request:"+req.ID, "proposer bond returned")
	assert.Equal(t, domain.RequestStatusFinalized, f.requests.rows[req.ID].Status)
	assert.Equal(t, domain.OutcomeYes, f.markets.rows["m1"].WinningOutcome)
	assert.Equal(t, domain.DisputeStatusResolved, f.disputes.rows[d.ID].Status)
	assert.Contains(t, f.audit.events, EventAdjudged)
}

func TestAdjudicateOverturnedWithExpectedOutcome(t *testing.T) {
	f := newFixture(t, nil)
	req, d := openDispute(t, f)

	require.NoError(t, f.svc.Adjudicate(context.Background(), d.ID, domain.VerdictOverturned, "arbiter-1"))

	require.Len(t, f.ledger.slashes, 1)
	slash := f.ledger.slashes[0]
	assert.Equal(t, "admin-1", slash.owner, "proposer forfeits the bond")
	assert.Equal(t, "request:"+req.ID, slash.ref)
	assert.Equal(t, "user-7", slash.winner)

	assert.Contains(t, f.ledger.released, "dispute:"+d.ID, "challenger bond returned")

	got := f.requests.rows[req.ID]
	assert.Equal(t, domain.RequestStatusFinalized, got.Status)
	assert.Equal(t, domain.OutcomeNo, got.ProposedOutcome)
	assert.Equal(t, 1.0, got.ConfidenceScore)
	assert.Equal(t, domain.OutcomeNo, f.markets.rows["m1"].WinningOutcome)
}

func TestAdjudicateOverturnedWithoutExpectedOutcome(t *testing.T) {
	f := newFixture(t, nil)
	f.addMarket("m1", domain.StrategyManual)
	req, err := f.svc.Propose(context.Background(), "m1", "admin-1", manualCtx(domain.OutcomeYes))
	require.NoError(t, err)
	d, err := f.svc.Challenge(context.Background(), req.ID, "user-7", "proposal is wrong but unclear", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Adjudicate(context.Background(), d.ID, domain.VerdictOverturned, "arbiter-1"))

	assert.Equal(t, domain.RequestStatusFailed, f.requests.rows[req.ID].Status)
	m := f.markets.rows["m1"]
	assert.Equal(t, domain.MarketStatusAwaitingResolution, m.Status)
	assert.Empty(t, m.WinningOutcome)
	assert.Empty(t, f.settler.calls)
	assert.Contains(t, f.audit.events, EventEscalated)
}

func TestAdjudicateClosedDispute(t *testing.T) {
	f := newFixture(t, nil)
	_, d := openDispute(t, f)

	require.NoError(t, f.svc.Adjudicate(context.Background(), d.ID, domain.VerdictUpheld, "arbiter-1"))
	err := f.svc.Adjudicate(context.Background(), d.ID, domain.VerdictOverturned, "arbiter-2")
	assert.ErrorIs(t, err, domain.ErrDisputeClosed)
}

func TestAdjudicateUnknownVerdict(t *testing.T) {
	f := newFixture(t, nil)
	_, d := openDispute(t, f)

	err := f.svc.Adjudicate(context.Background(), d.ID, domain.DisputeVerdict("split"), "arbiter-1")
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// AutoPropose
// ---------------------------------------------------------------------------

func TestAutoProposeConfidentVerdict(t *testing.T) {
	f := newFixture(t, answerRunner{outcome: domain.OutcomeYes, confidence: 95})
	f.addMarket("m1", domain.StrategyManual)
	f.addWorkflow("sports", 50)

	req, proposed, err := f.svc.AutoPropose(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, proposed)

	assert.Equal(t, "system:verification", req.ProposerID)
	assert.Equal(t, domain.OutcomeYes, req.ProposedOutcome)
	assert.Equal(t, 100.0, req.BondAmount, "high confidence takes the high bond tier")
	require.NotNil(t, req.ChallengeWindowEndsAt)
	assert.Equal(t, domain.MarketStatusAwaitingResolution, f.markets.rows["m1"].Status)
	assert.Contains(t, f.audit.events, EventVerified)
}

func TestAutoProposeLowConfidenceBondTier(t *testing.T) {
	f := newFixture(t, answerRunner{outcome: domain.OutcomeNo, confidence: 70})
	f.addMarket("m1", domain.StrategyManual)
	f.addWorkflow("sports", 50)

	req, proposed, err := f.svc.AutoPropose(context.Background(), "m1")
	require.NoError(t, err)
	require.True(t, proposed)
	assert.Equal(t, 50.0, req.BondAmount)
}

func TestAutoProposeFallsBackToGeneralWorkflow(t *testing.T) {
	f := newFixture(t, answerRunner{outcome: domain.OutcomeYes, confidence: 90})
	f.addMarket("m1", domain.StrategyManual)
	f.addWorkflow("general", 50)

	_, proposed, err := f.svc.AutoPropose(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, proposed)
}

func TestAutoProposeEscalatesOnSourceFailure(t *testing.T) {
	f := newFixture(t, answerRunner{err: errors.New("feed offline")})
	f.addMarket("m1", domain.StrategyManual)
	f.addWorkflow("sports", 50)

	_, proposed, err := f.svc.AutoPropose(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, proposed)

	assert.Equal(t, domain.MarketStatusAwaitingResolution, f.markets.rows["m1"].Status)
	assert.Empty(t, f.requests.rows)
	assert.Contains(t, f.audit.events, EventEscalated)

	// The escalated market is parked for humans: the next sweep must not
	// re-run verification or escalate again.
	before := len(f.audit.events)
	_, proposed, err = f.svc.AutoPropose(context.Background(), "m1")
	require.NoError(t, err)
	assert.False(t, proposed)
	assert.Len(t, f.audit.events, before)
}

func TestAutoProposeWithoutWorkflow(t *testing.T) {
	f := newFixture(t, answerRunner{outcome: domain.OutcomeYes, confidence: 90})
	f.addMarket("m1", domain.StrategyManual)

	_, _, err := f.svc.AutoPropose(context.Background(), "m1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no workflow for category")
}

// Interface checks keep the fakes honest.
var (
	_ domain.MarketStore      = (*memMarkets)(nil)
	_ domain.RequestStore     = (*memRequests)(nil)
	_ domain.DisputeStore     = (*memDisputes)(nil)
	_ domain.AssertionStore   = (*memAssertions)(nil)
	_ domain.WorkflowStore    = (*memWorkflows)(nil)
	_ domain.AuditStore       = (*memAudit)(nil)
	_ domain.LockManager      = (*fakeLocks)(nil)
	_ domain.BondLedger       = (*fakeLedger)(nil)
	_ domain.SettlementEngine = (*fakeSettler)(nil)
	_ domain.SignalBus        = (*fakeBus)(nil)
)
