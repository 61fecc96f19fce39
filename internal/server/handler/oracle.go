package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/strategy"
)

// ResolutionService defines the methods the oracle handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type ResolutionService interface {
	Propose(ctx context.Context, marketID, proposerID string, rc strategy.Context) (domain.OracleRequest, error)
	Challenge(ctx context.Context, requestID, disputerID, reason, expectedOutcome string) (domain.OracleDispute, error)
	Finalize(ctx context.Context, requestID string) error
	Adjudicate(ctx context.Context, disputeID string, verdict domain.DisputeVerdict, adjudicatorID string) error
}

// OracleHandler serves the resolution lifecycle endpoints.
type OracleHandler struct {
	svc      ResolutionService
	requests domain.RequestStore
	disputes domain.DisputeStore
	logger   *slog.Logger
}

// NewOracleHandler creates an OracleHandler.
func NewOracleHandler(svc ResolutionService, requests domain.RequestStore, disputes domain.DisputeStore, logger *slog.Logger) *OracleHandler {
	return &OracleHandler{
		svc:      svc,
		requests: requests,
		disputes: disputes,
		logger:   logger,
	}
}

// proposeRequest is the body for the propose endpoint. Exactly one of the
// strategy sections should be set, matching the market's strategy type.
type proposeRequest struct {
	ProposerID  string                       `json:"proposer_id"`
	Manual      *strategy.ManualContext      `json:"manual,omitempty"`
	API         *strategy.APIContext         `json:"api,omitempty"`
	AI          *strategy.AIContext          `json:"ai,omitempty"`
	Centralized *strategy.CentralizedContext `json:"centralized,omitempty"`
	Assertion   *strategy.AssertionContext   `json:"assertion,omitempty"`
}

// Propose runs the market's resolution strategy and opens a request.
// POST /api/oracle/markets/{id}/propose
func (h *OracleHandler) Propose(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var body proposeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.ProposerID == "" {
		writeError(w, http.StatusBadRequest, "missing proposer_id")
		return
	}

	rc := strategy.Context{
		Manual:      body.Manual,
		API:         body.API,
		AI:          body.AI,
		Centralized: body.Centralized,
		Assertion:   body.Assertion,
	}

	req, err := h.svc.Propose(r.Context(), marketID, body.ProposerID, rc)
	if err != nil {
		h.writeResolutionError(w, r, "propose", marketID, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// challengeRequest is the body for the challenge endpoint.
type challengeRequest struct {
	DisputerID      string `json:"disputer_id"`
	Reason          string `json:"reason"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
}

// Challenge opens a dispute against a proposed outcome.
// POST /api/oracle/requests/{id}/challenge
func (h *OracleHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	var body challengeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.DisputerID == "" || body.Reason == "" {
		writeError(w, http.StatusBadRequest, "missing disputer_id or reason")
		return
	}
	if body.ExpectedOutcome != "" &&
		body.ExpectedOutcome != domain.OutcomeYes && body.ExpectedOutcome != domain.OutcomeNo {
		writeError(w, http.StatusBadRequest, "expected_outcome must be yes or no")
		return
	}

	dispute, err := h.svc.Challenge(r.Context(), requestID, body.DisputerID, body.Reason, body.ExpectedOutcome)
	if err != nil {
		h.writeResolutionError(w, r, "challenge", requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, dispute)
}

// Finalize closes an unchallenged proposal whose window has passed.
// POST /api/oracle/requests/{id}/finalize
func (h *OracleHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	if err := h.svc.Finalize(r.Context(), requestID); err != nil {
		h.writeResolutionError(w, r, "finalize", requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
}

// adjudicateRequest is the body for the adjudicate endpoint.
type adjudicateRequest struct {
	Verdict       string `json:"verdict"`
	AdjudicatorID string `json:"adjudicator_id"`
}

// Adjudicate rules on an open dispute.
// POST /api/oracle/disputes/{id}/adjudicate
func (h *OracleHandler) Adjudicate(w http.ResponseWriter, r *http.Request) {
	disputeID := r.PathValue("id")
	if disputeID == "" {
		writeError(w, http.StatusBadRequest, "missing dispute id")
		return
	}

	var body adjudicateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	verdict := domain.DisputeVerdict(body.Verdict)
	if verdict != domain.VerdictUpheld && verdict != domain.VerdictOverturned {
		writeError(w, http.StatusBadRequest, "verdict must be upheld or overturned")
		return
	}
	if body.AdjudicatorID == "" {
		writeError(w, http.StatusBadRequest, "missing adjudicator_id")
		return
	}

	if err := h.svc.Adjudicate(r.Context(), disputeID, verdict, body.AdjudicatorID); err != nil {
		h.writeResolutionError(w, r, "adjudicate", disputeID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "adjudicated", "verdict": body.Verdict})
}

// GetRequest returns a single resolution request by ID.
// GET /api/oracle/requests/{id}
func (h *OracleHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "missing request id")
		return
	}

	req, err := h.requests.GetByID(r.Context(), requestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "request not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get request failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get request")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// ListMarketRequests returns a market's resolution history, newest first.
// GET /api/oracle/markets/{id}/requests
func (h *OracleHandler) ListMarketRequests(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("id")
	if marketID == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	reqs, err := h.requests.ListByMarket(r.Context(), marketID, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list market requests failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list requests")
		return
	}
	if reqs == nil {
		reqs = []domain.OracleRequest{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": reqs,
		"count":    len(reqs),
	})
}

// ListOpenDisputes returns open disputes, oldest first.
// GET /api/oracle/disputes
func (h *OracleHandler) ListOpenDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := h.disputes.ListOpen(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open disputes failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list disputes")
		return
	}
	if disputes == nil {
		disputes = []domain.OracleDispute{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"disputes": disputes,
		"count":    len(disputes),
	})
}

// writeResolutionError maps domain errors onto HTTP status codes.
func (h *OracleHandler) writeResolutionError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidContext):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientSignatures):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrNotChallengeable),
		errors.Is(err, domain.ErrWindowExpired),
		errors.Is(err, domain.ErrWindowActive),
		errors.Is(err, domain.ErrDisputeOpen),
		errors.Is(err, domain.ErrDisputeClosed),
		errors.Is(err, domain.ErrMarketResolved),
		errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
