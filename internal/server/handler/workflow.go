package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// VerificationRunner runs a workflow against a market without touching the
// resolution state machine. Used by the dry-run execute endpoint.
type VerificationRunner interface {
	Execute(ctx context.Context, wf domain.VerificationWorkflow, market domain.Market) domain.WorkflowResult
}

// WorkflowHandler serves verification workflow configuration endpoints.
type WorkflowHandler struct {
	workflows domain.WorkflowStore
	markets   domain.MarketStore
	runner    VerificationRunner
	logger    *slog.Logger
}

// NewWorkflowHandler creates a WorkflowHandler.
func NewWorkflowHandler(workflows domain.WorkflowStore, markets domain.MarketStore, runner VerificationRunner, logger *slog.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflows: workflows,
		markets:   markets,
		runner:    runner,
		logger:    logger,
	}
}

// List returns all configured workflows.
// GET /api/workflows
func (h *WorkflowHandler) List(w http.ResponseWriter, r *http.Request) {
	wfs, err := h.workflows.List(r.Context(), domain.ListOpts{})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list workflows failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list workflows")
		return
	}
	if wfs == nil {
		wfs = []domain.VerificationWorkflow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflows": wfs,
		"count":     len(wfs),
	})
}

// Get returns a single workflow by ID.
// GET /api/workflows/{id}
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing workflow id")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get workflow failed",
			slog.String("workflow_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// Upsert creates or replaces a workflow definition.
// PUT /api/workflows
func (h *WorkflowHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var wf domain.VerificationWorkflow
	if !decodeJSON(w, r, &wf) {
		return
	}
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	if wf.Name == "" || wf.Category == "" || len(wf.Steps) == 0 {
		writeError(w, http.StatusBadRequest, "workflow needs a name, category and at least one step")
		return
	}
	for _, step := range wf.Steps {
		if len(step.Sources) == 0 {
			writeError(w, http.StatusBadRequest, "step "+step.Name+" has no sources")
			return
		}
		for _, src := range step.Sources {
			if !knownMethod(src.Method) {
				writeError(w, http.StatusBadRequest, "source "+src.Name+" uses unknown method "+string(src.Method))
				return
			}
		}
	}
	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	if err := h.workflows.Upsert(r.Context(), wf); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "another enabled workflow already covers category "+wf.Category)
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: upsert workflow failed",
			slog.String("workflow_id", wf.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to save workflow")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// setEnabledRequest is the body for the enable endpoint.
type setEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled toggles a workflow on or off.
// POST /api/workflows/{id}/enabled
func (h *WorkflowHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing workflow id")
		return
	}

	var body setEnabledRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := h.workflows.SetEnabled(r.Context(), id, body.Enabled); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: set workflow enabled failed",
			slog.String("workflow_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to update workflow")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// executeRequest is the body for the dry-run execute endpoint.
type executeRequest struct {
	MarketID string `json:"market_id"`
}

// Execute runs a workflow against a market and returns the verification
// result without proposing an outcome.
// POST /api/workflows/{id}/execute
func (h *WorkflowHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing workflow id")
		return
	}

	var body executeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.MarketID == "" {
		writeError(w, http.StatusBadRequest, "missing market_id")
		return
	}

	wf, err := h.workflows.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "workflow not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get workflow")
		return
	}

	market, err := h.markets.GetByID(r.Context(), body.MarketID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	res := h.runner.Execute(r.Context(), wf, market)
	writeJSON(w, http.StatusOK, res)
}

// knownMethod reports whether m is in the closed verification method set.
func knownMethod(m domain.VerificationMethod) bool {
	for _, known := range domain.Methods() {
		if m == known {
			return true
		}
	}
	return false
}
