// Package oracle implements the optimistic resolution state machine: propose,
// challenge, adjudicate, finalize. The service owns every state transition
// and side effect; strategies and the verification orchestrator only supply
// outcomes.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	oraclecrypto "github.com/alanyoungcy/oraclebot/internal/crypto"
	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/notify"
	"github.com/alanyoungcy/oraclebot/internal/strategy"
	"github.com/alanyoungcy/oraclebot/internal/verify"
)

// ServiceConfig holds the oracle's economic parameters.
type ServiceConfig struct {
	// ChallengeWindow is how long a proposed outcome stays challengeable.
	ChallengeWindow time.Duration
	// MinBond is the floor for proposer and challenger stakes.
	MinBond      float64
	BondCurrency string
	// HighBond and LowBond are the stakes for verification-driven proposals,
	// split at ConfidenceCutoff (0-1 scale).
	HighBond         float64
	LowBond          float64
	ConfidenceCutoff float64
	// SlashWinnerShare is the fraction of a slashed bond credited to the
	// winning party; the rest stays with the platform.
	SlashWinnerShare float64
	// LockTTL bounds how long a per-market mutation lock is held.
	LockTTL time.Duration
}

// Deps collects the service's collaborators.
type Deps struct {
	Markets    domain.MarketStore
	Requests   domain.RequestStore
	Disputes   domain.DisputeStore
	Assertions domain.AssertionStore
	Workflows  domain.WorkflowStore
	Audit      domain.AuditStore

	Locks   domain.LockManager
	Ledger  domain.BondLedger
	Settler domain.SettlementEngine

	Registry *strategy.Registry
	Verifier *verify.Orchestrator

	// Optional collaborators. A nil Blob skips evidence archival, a nil Bus
	// skips event publishing, a nil Notifier skips operator alerts, a nil
	// Signer skips resolution attestations.
	Blob     domain.BlobWriter
	Bus      domain.SignalBus
	Notifier *notify.Notifier
	Signer   *oraclecrypto.Signer

	Logger *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service is the resolution state machine.
type Service struct {
	markets    domain.MarketStore
	requests   domain.RequestStore
	disputes   domain.DisputeStore
	assertions domain.AssertionStore
	workflows  domain.WorkflowStore
	audit      domain.AuditStore

	locks   domain.LockManager
	ledger  domain.BondLedger
	settler domain.SettlementEngine

	registry *strategy.Registry
	verifier *verify.Orchestrator

	blob     domain.BlobWriter
	bus      domain.SignalBus
	notifier *notify.Notifier
	signer   *oraclecrypto.Signer

	cfg    ServiceConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates the oracle service.
func NewService(deps Deps, cfg ServiceConfig) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		markets:    deps.Markets,
		requests:   deps.Requests,
		disputes:   deps.Disputes,
		assertions: deps.Assertions,
		workflows:  deps.Workflows,
		audit:      deps.Audit,
		locks:      deps.Locks,
		ledger:     deps.Ledger,
		settler:    deps.Settler,
		registry:   deps.Registry,
		verifier:   deps.Verifier,
		blob:       deps.Blob,
		bus:        deps.Bus,
		notifier:   deps.Notifier,
		signer:     deps.Signer,
		cfg:        cfg,
		logger:     deps.Logger.With(slog.String("component", "oracle")),
		now:        now,
	}
}

func requestRef(id string) string { return "request:" + id }
func disputeRef(id string) string { return "dispute:" + id }

// Propose runs the market's configured strategy against rc and opens a
// resolution request. Strategies that request immediate finalization (the
// centralized path) bypass the challenge window; everything else locks a
// bond and waits out the window.
func (s *Service) Propose(ctx context.Context, marketID, proposerID string, rc strategy.Context) (domain.OracleRequest, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.OracleRequest{}, fmt.Errorf("oracle: propose %s: %w", marketID, err)
	}
	defer unlock()

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.OracleRequest{}, fmt.Errorf("oracle: propose %s: %w", marketID, err)
	}
	if err := s.checkProposable(ctx, market); err != nil {
		return domain.OracleRequest{}, err
	}

	strat, err := s.registry.Get(market.StrategyType)
	if err != nil {
		return domain.OracleRequest{}, fmt.Errorf("oracle: propose %s: %w", marketID, err)
	}

	rc.Market = market
	out, err := strat.Resolve(ctx, rc)
	if err != nil {
		return domain.OracleRequest{}, fmt.Errorf("oracle: propose %s: %w", marketID, err)
	}

	bond := out.Bond
	if !out.SkipsWindow() && bond < s.cfg.MinBond {
		bond = s.cfg.MinBond
	}

	req, err := s.createProposal(ctx, market, proposerID, out.Outcome, out.Confidence, bond, proposalEvidence{
		Summary: out.EvidenceSummary,
		URLs:    out.EvidenceURLs,
		Detail:  out.Evidence,
	}, out.SkipsWindow())
	if err != nil {
		return domain.OracleRequest{}, err
	}

	// Strategy side effects run after the request exists so audit entries
	// reference a real row.
	s.runEffects(ctx, market, req, out.Effects)

	if market.StrategyType == domain.StrategyAssertion && rc.Assertion != nil {
		assertion := domain.Assertion{
			ID:         uuid.New().String(),
			MarketID:   market.ID,
			AsserterID: rc.Assertion.AsserterID,
			Outcome:    out.Outcome,
			BondAmount: bond,
			AssertedAt: s.now().UTC(),
		}
		if err := s.assertions.Insert(ctx, assertion); err != nil {
			s.logger.WarnContext(ctx, "failed to record assertion",
				"market_id", market.ID, "error", err)
		}
	}

	if out.SkipsWindow() {
		if err := s.finalizeRequest(ctx, market, req); err != nil {
			return req, err
		}
		req.Status = domain.RequestStatusFinalized
	}
	return req, nil
}

// AutoPropose resolves a market through its category's verification workflow
// and, when the workflow reaches a confident verdict, opens a proposal on
// behalf of the system. An escalated verdict parks the market for humans and
// returns proposed=false with no error.
func (s *Service) AutoPropose(ctx context.Context, marketID string) (domain.OracleRequest, bool, error) {
	unlock, err := s.locks.Acquire(ctx, "market:"+marketID, s.cfg.LockTTL)
	if err != nil {
		return domain.OracleRequest{}, false, fmt.Errorf("oracle: auto-propose %s: %w", marketID, err)
	}
	defer unlock()

	market, err := s.markets.GetByID(ctx, marketID)
	if err != nil {
		return domain.OracleRequest{}, false, fmt.Errorf("oracle: auto-propose %s: %w", marketID, err)
	}
	if err := s.checkProposable(ctx, market); err != nil {
		return domain.OracleRequest{}, false, err
	}
	// A market already awaiting resolution with no active request was
	// escalated by a previous run; it belongs to humans now.
	if market.Status == domain.MarketStatusAwaitingResolution {
		return domain.OracleRequest{}, false, nil
	}

	wf, err := s.workflows.GetByCategory(ctx, market.Category)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.OracleRequest{}, false, fmt.Errorf("oracle: auto-propose %s: %w", marketID, err)
		}
		wf, err = s.workflows.GetByCategory(ctx, "general")
		if err != nil {
			return domain.OracleRequest{}, false, fmt.Errorf("oracle: auto-propose %s: no workflow for category %q: %w", marketID, market.Category, err)
		}
	}

	res := s.verifier.Execute(ctx, wf, market)
	if wf.AuditTrail {
		s.auditLog(ctx, EventVerified, map[string]any{
			"market_id":   market.ID,
			"workflow_id": wf.ID,
			"outcome":     res.Outcome,
			"confidence":  res.Confidence,
			"steps":       len(res.Steps),
			"mismatch":    res.MismatchDetected,
		})
	}
	if res.Escalated {
		return domain.OracleRequest{}, false, s.escalateMarket(ctx, market, res.EscalationReason)
	}

	confidence := res.Confidence / 100
	bond := s.cfg.LowBond
	if confidence >= s.cfg.ConfidenceCutoff {
		bond = s.cfg.HighBond
	}
	if bond < s.cfg.MinBond {
		bond = s.cfg.MinBond
	}

	detail := map[string]any{"workflow_id": wf.ID, "steps": len(res.Steps)}
	if res.MismatchDetected {
		// A confident consensus can still carry a contradiction; reviewers
		// see it on the request even though the proposal goes ahead.
		detail["mismatch"] = res.MismatchDetail
	}
	req, err := s.createProposal(ctx, market, "system:verification", res.Outcome, confidence, bond, proposalEvidence{
		Summary: fmt.Sprintf("workflow %s consensus %s at %.0f%%", wf.Name, res.Outcome, res.Confidence),
		Detail:  detail,
	}, false)
	if err != nil {
		return domain.OracleRequest{}, false, err
	}
	return req, true, nil
}

// Challenge opens a dispute against a proposed outcome. The challenger locks
// a bond matching the proposer's stake; symmetrical skin in the game keeps
// frivolous challenges out.
func (s *Service) Challenge(ctx context.Context, requestID, disputerID, reason, expectedOutcome string) (domain.OracleDispute, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: %w", requestID, err)
	}

	unlock, err := s.locks.Acquire(ctx, "market:"+req.MarketID, s.cfg.LockTTL)
	if err != nil {
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: %w", requestID, err)
	}
	defer unlock()

	// Re-read under the lock.
	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: %w", requestID, err)
	}
	if req.Status != domain.RequestStatusProposed {
		return domain.OracleDispute{}, domain.ErrNotChallengeable
	}
	if !req.WindowOpen(s.now()) {
		return domain.OracleDispute{}, domain.ErrWindowExpired
	}

	if err := s.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusProposed, domain.RequestStatusDisputed); err != nil {
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: %w", requestID, err)
	}

	dispute := domain.OracleDispute{
		ID:              uuid.New().String(),
		RequestID:       req.ID,
		DisputerID:      disputerID,
		BondAmount:      req.BondAmount,
		Reason:          reason,
		ExpectedOutcome: expectedOutcome,
		Status:          domain.DisputeStatusOpen,
	}

	if err := s.ledger.Lock(ctx, disputerID, disputeRef(dispute.ID), dispute.BondAmount, req.BondCurrency); err != nil {
		s.revertToProposed(ctx, req.ID)
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: lock bond: %w", requestID, err)
	}

	if err := s.disputes.Create(ctx, dispute); err != nil {
		if relErr := s.ledger.Release(ctx, disputerID, disputeRef(dispute.ID)); relErr != nil {
			s.logger.ErrorContext(ctx, "failed to release challenger bond after create failure",
				"dispute_id", dispute.ID, "error", relErr)
		}
		s.revertToProposed(ctx, req.ID)
		return domain.OracleDispute{}, fmt.Errorf("oracle: challenge %s: %w", requestID, err)
	}

	s.auditLog(ctx, EventChallenged, map[string]any{
		"market_id":  req.MarketID,
		"request_id": req.ID,
		"dispute_id": dispute.ID,
		"disputer":   disputerID,
		"bond":       dispute.BondAmount,
	})
	s.publish(ctx, Event{Type: EventChallenged, MarketID: req.MarketID, RequestID: req.ID,
		Detail: map[string]any{"dispute_id": dispute.ID}})
	s.notify(ctx, EventChallenged, "Outcome challenged",
		fmt.Sprintf("market %s: %q challenged by %s: %s", req.MarketID, req.ProposedOutcome, disputerID, reason))

	return dispute, nil
}

// Finalize closes an unchallenged proposal after its window passed: the
// proposer's bond is released, the market resolves, and settlement runs.
func (s *Service) Finalize(ctx context.Context, requestID string) error {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("oracle: finalize %s: %w", requestID, err)
	}

	unlock, err := s.locks.Acquire(ctx, "market:"+req.MarketID, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("oracle: finalize %s: %w", requestID, err)
	}
	defer unlock()

	req, err = s.requests.GetByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("oracle: finalize %s: %w", requestID, err)
	}
	switch req.Status {
	case domain.RequestStatusProposed:
	case domain.RequestStatusDisputed:
		return domain.ErrDisputeOpen
	default:
		return domain.ErrNotChallengeable
	}
	if req.WindowOpen(s.now()) {
		return domain.ErrWindowActive
	}

	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return fmt.Errorf("oracle: finalize %s: %w", requestID, err)
	}
	return s.finalizeRequest(ctx, market, req)
}

// Adjudicate rules on an open dispute. Upheld keeps the proposed outcome
// and slashes the challenger; overturned slashes the proposer and finalizes
// the challenger's expected outcome when one was stated, otherwise the
// request fails and the market goes back to humans.
func (s *Service) Adjudicate(ctx context.Context, disputeID string, verdict domain.DisputeVerdict, adjudicatorID string) error {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
	}
	if dispute.Status != domain.DisputeStatusOpen {
		return domain.ErrDisputeClosed
	}

	req, err := s.requests.GetByID(ctx, dispute.RequestID)
	if err != nil {
		return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
	}

	unlock, err := s.locks.Acquire(ctx, "market:"+req.MarketID, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
	}
	defer unlock()

	if err := s.disputes.Resolve(ctx, disputeID, verdict, adjudicatorID, s.now().UTC()); err != nil {
		return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
	}

	market, err := s.markets.GetByID(ctx, req.MarketID)
	if err != nil {
		return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
	}

	switch verdict {
	case domain.VerdictUpheld:
		if err := s.ledger.Slash(ctx, dispute.DisputerID, disputeRef(dispute.ID), req.ProposerID, s.cfg.SlashWinnerShare); err != nil {
			s.logger.ErrorContext(ctx, "failed to slash challenger bond",
				"dispute_id", disputeID, "error", err)
		}
		if err := s.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusDisputed, domain.RequestStatusFinalized); err != nil {
			return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
		}
		if err := s.releaseBond(ctx, req); err != nil {
			s.logger.ErrorContext(ctx, "failed to release proposer bond",
				"request_id", req.ID, "error", err)
		}
		if err := s.resolveMarket(ctx, market, req.ProposedOutcome, req); err != nil {
			return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
		}

	case domain.VerdictOverturned:
		if req.BondAmount > 0 {
			if err := s.ledger.Slash(ctx, req.ProposerID, requestRef(req.ID), dispute.DisputerID, s.cfg.SlashWinnerShare); err != nil {
				s.logger.ErrorContext(ctx, "failed to slash proposer bond",
					"request_id", req.ID, "error", err)
			}
		}
		if err := s.ledger.Release(ctx, dispute.DisputerID, disputeRef(dispute.ID)); err != nil {
			s.logger.ErrorContext(ctx, "failed to release challenger bond",
				"dispute_id", disputeID, "error", err)
		}

		if dispute.ExpectedOutcome == domain.OutcomeYes || dispute.ExpectedOutcome == domain.OutcomeNo {
			if err := s.requests.SetOutcome(ctx, req.ID, dispute.ExpectedOutcome, 1.0); err != nil {
				return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
			}
			if err := s.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusDisputed, domain.RequestStatusFinalized); err != nil {
				return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
			}
			req.ProposedOutcome = dispute.ExpectedOutcome
			if err := s.resolveMarket(ctx, market, dispute.ExpectedOutcome, req); err != nil {
				return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
			}
		} else {
			if err := s.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusDisputed, domain.RequestStatusFailed); err != nil {
				return fmt.Errorf("oracle: adjudicate %s: %w", disputeID, err)
			}
			if err := s.escalateMarket(ctx, market, "proposal overturned without a stated outcome"); err != nil {
				return err
			}
		}

	default:
		return fmt.Errorf("oracle: adjudicate %s: unknown verdict %q", disputeID, verdict)
	}

	s.auditLog(ctx, EventAdjudged, map[string]any{
		"dispute_id":  disputeID,
		"request_id":  req.ID,
		"market_id":   req.MarketID,
		"verdict":     string(verdict),
		"adjudicator": adjudicatorID,
	})
	s.publish(ctx, Event{Type: EventAdjudged, MarketID: req.MarketID, RequestID: req.ID,
		Detail: map[string]any{"dispute_id": disputeID, "verdict": string(verdict)}})
	return nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

type proposalEvidence struct {
	Summary string
	URLs    []string
	Detail  map[string]any
}

// checkProposable verifies the market can accept a new proposal.
func (s *Service) checkProposable(ctx context.Context, market domain.Market) error {
	if market.Status == domain.MarketStatusResolved {
		return domain.ErrMarketResolved
	}
	if !market.Resolvable(s.now()) {
		return fmt.Errorf("oracle: market %s is not resolvable yet", market.ID)
	}
	if _, err := s.requests.GetActiveByMarket(ctx, market.ID); err == nil {
		return domain.ErrAlreadyExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("oracle: check active request for %s: %w", market.ID, err)
	}
	return nil
}

// createProposal locks the bond, persists the request and emits the proposal
// events. Callers hold the market lock.
func (s *Service) createProposal(ctx context.Context, market domain.Market, proposerID, outcome string, confidence, bond float64, ev proposalEvidence, skipWindow bool) (domain.OracleRequest, error) {
	nowUTC := s.now().UTC()
	req := domain.OracleRequest{
		ID:              uuid.New().String(),
		MarketID:        market.ID,
		RequestType:     domain.RequestTypeInitial,
		ProposerID:      proposerID,
		ProposedOutcome: outcome,
		ConfidenceScore: confidence,
		EvidenceSummary: ev.Summary,
		EvidenceURLs:    ev.URLs,
		Evidence:        ev.Detail,
		BondAmount:      bond,
		BondCurrency:    s.cfg.BondCurrency,
		Status:          domain.RequestStatusProposed,
		CreatedAt:       nowUTC,
		UpdatedAt:       nowUTC,
	}
	if !skipWindow {
		windowEnd := nowUTC.Add(s.cfg.ChallengeWindow)
		req.ChallengeWindowEndsAt = &windowEnd
	}

	if bond > 0 {
		if err := s.ledger.Lock(ctx, proposerID, requestRef(req.ID), bond, req.BondCurrency); err != nil {
			return domain.OracleRequest{}, fmt.Errorf("oracle: lock proposer bond: %w", err)
		}
	}

	if err := s.requests.Create(ctx, req); err != nil {
		if bond > 0 {
			if relErr := s.ledger.Release(ctx, proposerID, requestRef(req.ID)); relErr != nil {
				s.logger.ErrorContext(ctx, "failed to release bond after create failure",
					"request_id", req.ID, "error", relErr)
			}
		}
		return domain.OracleRequest{}, fmt.Errorf("oracle: create request for %s: %w", market.ID, err)
	}

	if market.Status != domain.MarketStatusAwaitingResolution {
		if err := s.markets.SetStatus(ctx, market.ID, domain.MarketStatusAwaitingResolution); err != nil {
			s.logger.WarnContext(ctx, "failed to mark market awaiting resolution",
				"market_id", market.ID, "error", err)
		}
	}

	s.auditLog(ctx, EventProposed, map[string]any{
		"market_id":  market.ID,
		"request_id": req.ID,
		"proposer":   proposerID,
		"outcome":    outcome,
		"confidence": confidence,
		"bond":       bond,
	})
	s.publish(ctx, Event{Type: EventProposed, MarketID: market.ID, RequestID: req.ID, Outcome: outcome})
	s.notify(ctx, EventProposed, "Outcome proposed",
		fmt.Sprintf("market %s: %q proposed by %s (confidence %.0f%%, bond %.0f)",
			market.ID, outcome, proposerID, confidence*100, bond))

	return req, nil
}

// finalizeRequest moves a proposed request to finalized and resolves the
// market. Callers hold the market lock.
func (s *Service) finalizeRequest(ctx context.Context, market domain.Market, req domain.OracleRequest) error {
	if err := s.requests.TransitionStatus(ctx, req.ID, domain.RequestStatusProposed, domain.RequestStatusFinalized); err != nil {
		return fmt.Errorf("oracle: finalize request %s: %w", req.ID, err)
	}
	if err := s.releaseBond(ctx, req); err != nil {
		s.logger.ErrorContext(ctx, "failed to release proposer bond",
			"request_id", req.ID, "error", err)
	}
	return s.resolveMarket(ctx, market, req.ProposedOutcome, req)
}

// resolveMarket records the winning outcome, settles positions and archives
// evidence. Settlement failure is surfaced to the caller after notifying
// operators: the market is already resolved and must not flip back.
func (s *Service) resolveMarket(ctx context.Context, market domain.Market, winningOutcome string, req domain.OracleRequest) error {
	nowUTC := s.now().UTC()
	if err := s.markets.SetResolved(ctx, market.ID, winningOutcome, nowUTC); err != nil {
		return fmt.Errorf("oracle: resolve market %s: %w", market.ID, err)
	}

	detail := map[string]any{
		"market_id":  market.ID,
		"request_id": req.ID,
		"outcome":    winningOutcome,
	}
	var eventDetail map[string]any
	if s.signer != nil {
		sig, err := s.signer.SignResolution(market.ID, winningOutcome)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to sign resolution",
				"market_id", market.ID, "error", err)
		} else {
			detail["attestation"] = sig
			detail["attester"] = s.signer.Address().Hex()
			eventDetail = map[string]any{"attestation": sig}
		}
	}

	s.auditLog(ctx, EventResolved, detail)
	s.publish(ctx, Event{Type: EventResolved, MarketID: market.ID, RequestID: req.ID, Outcome: winningOutcome, Detail: eventDetail})
	s.notify(ctx, EventResolved, "Market resolved",
		fmt.Sprintf("market %s resolved to %q", market.ID, winningOutcome))

	s.archiveEvidence(ctx, market, req)

	if err := s.settler.Settle(ctx, market.ID, winningOutcome); err != nil {
		s.notify(ctx, "error", "Settlement failed",
			fmt.Sprintf("market %s resolved to %q but settlement failed: %v", market.ID, winningOutcome, err))
		return fmt.Errorf("oracle: settle market %s: %w", market.ID, err)
	}
	return nil
}

// escalateMarket parks a market for human review.
func (s *Service) escalateMarket(ctx context.Context, market domain.Market, reason string) error {
	if err := s.markets.SetStatus(ctx, market.ID, domain.MarketStatusAwaitingResolution); err != nil {
		return fmt.Errorf("oracle: escalate market %s: %w", market.ID, err)
	}
	s.auditLog(ctx, EventEscalated, map[string]any{
		"market_id": market.ID,
		"reason":    reason,
	})
	s.publish(ctx, Event{Type: EventEscalated, MarketID: market.ID, Detail: map[string]any{"reason": reason}})
	s.notify(ctx, EventEscalated, "Resolution escalated",
		fmt.Sprintf("market %s needs human review: %s", market.ID, reason))
	return nil
}

// runEffects executes the side effects a strategy requested.
func (s *Service) runEffects(ctx context.Context, market domain.Market, req domain.OracleRequest, effects []strategy.Effect) {
	for _, e := range effects {
		switch e.Kind {
		case strategy.EffectAuditEvent:
			s.auditLog(ctx, e.Event, e.Detail)
		case strategy.EffectNotifyAdmins:
			s.notify(ctx, e.Event, "Oracle notice",
				fmt.Sprintf("market %s request %s: %s", market.ID, req.ID, e.Event))
		case strategy.EffectSkipWindow:
			// Handled by the propose path.
		}
	}
}

func (s *Service) releaseBond(ctx context.Context, req domain.OracleRequest) error {
	if req.BondAmount <= 0 {
		return nil
	}
	return s.ledger.Release(ctx, req.ProposerID, requestRef(req.ID))
}

// revertToProposed is a best-effort rollback used when a challenge fails
// half-way.
func (s *Service) revertToProposed(ctx context.Context, requestID string) {
	if err := s.requests.TransitionStatus(ctx, requestID, domain.RequestStatusDisputed, domain.RequestStatusProposed); err != nil {
		s.logger.ErrorContext(ctx, "failed to revert request to proposed",
			"request_id", requestID, "error", err)
	}
}

func (s *Service) auditLog(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit entry", "event", event, "error", err)
	}
}

func (s *Service) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "event", event, "error", err)
	}
}
