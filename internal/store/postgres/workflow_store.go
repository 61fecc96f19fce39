package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// WorkflowStore implements domain.WorkflowStore using PostgreSQL. Step
// definitions are stored as a single JSONB document since they are always
// read and written as a unit.
type WorkflowStore struct {
	pool *pgxpool.Pool
}

// NewWorkflowStore creates a new WorkflowStore backed by the given connection pool.
func NewWorkflowStore(pool *pgxpool.Pool) *WorkflowStore {
	return &WorkflowStore{pool: pool}
}

const workflowCols = `id, name, category, steps, global_timeout_sec, final_outcome_logic,
	escalation_threshold, audit_trail, alert_on_mismatch, enabled, created_at, updated_at`

func scanWorkflow(row pgx.Row) (domain.VerificationWorkflow, error) {
	var wf domain.VerificationWorkflow
	var steps []byte
	err := row.Scan(
		&wf.ID, &wf.Name, &wf.Category, &steps,
		&wf.GlobalTimeoutSec, &wf.FinalOutcomeLogic,
		&wf.EscalationThreshold, &wf.AuditTrail, &wf.AlertOnMismatch,
		&wf.Enabled, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return domain.VerificationWorkflow{}, err
	}
	if err := json.Unmarshal(steps, &wf.Steps); err != nil {
		return domain.VerificationWorkflow{}, fmt.Errorf("decode steps: %w", err)
	}
	return wf, nil
}

// Upsert inserts or updates a workflow definition.
func (s *WorkflowStore) Upsert(ctx context.Context, wf domain.VerificationWorkflow) error {
	steps, err := json.Marshal(wf.Steps)
	if err != nil {
		return fmt.Errorf("postgres: encode workflow %s steps: %w", wf.ID, err)
	}

	const query = `
		INSERT INTO verification_workflows (
			id, name, category, steps, global_timeout_sec, final_outcome_logic,
			escalation_threshold, audit_trail, alert_on_mismatch, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name                 = EXCLUDED.name,
			category             = EXCLUDED.category,
			steps                = EXCLUDED.steps,
			global_timeout_sec   = EXCLUDED.global_timeout_sec,
			final_outcome_logic  = EXCLUDED.final_outcome_logic,
			escalation_threshold = EXCLUDED.escalation_threshold,
			audit_trail          = EXCLUDED.audit_trail,
			alert_on_mismatch    = EXCLUDED.alert_on_mismatch,
			enabled              = EXCLUDED.enabled,
			updated_at           = NOW()`

	_, err = s.pool.Exec(ctx, query,
		wf.ID, wf.Name, wf.Category, steps, wf.GlobalTimeoutSec, wf.FinalOutcomeLogic,
		wf.EscalationThreshold, wf.AuditTrail, wf.AlertOnMismatch, wf.Enabled)
	if err != nil {
		return fmt.Errorf("postgres: upsert workflow %s: %w", wf.ID, err)
	}
	return nil
}

// GetByID retrieves a workflow by its primary key.
func (s *WorkflowStore) GetByID(ctx context.Context, id string) (domain.VerificationWorkflow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workflowCols+` FROM verification_workflows WHERE id = $1`, id)
	wf, err := scanWorkflow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.VerificationWorkflow{}, domain.ErrNotFound
		}
		return domain.VerificationWorkflow{}, fmt.Errorf("postgres: get workflow %s: %w", id, err)
	}
	return wf, nil
}

// GetByCategory retrieves the enabled workflow for a market category.
func (s *WorkflowStore) GetByCategory(ctx context.Context, category string) (domain.VerificationWorkflow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workflowCols+` FROM verification_workflows WHERE category = $1 AND enabled`,
		category)
	wf, err := scanWorkflow(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.VerificationWorkflow{}, domain.ErrNotFound
		}
		return domain.VerificationWorkflow{}, fmt.Errorf("postgres: get workflow for category %s: %w", category, err)
	}
	return wf, nil
}

// SetEnabled toggles a workflow on or off.
func (s *WorkflowStore) SetEnabled(ctx context.Context, id string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE verification_workflows SET enabled = $2, updated_at = NOW() WHERE id = $1`,
		id, enabled)
	if err != nil {
		return fmt.Errorf("postgres: set workflow %s enabled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns workflow definitions ordered by category.
func (s *WorkflowStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.VerificationWorkflow, error) {
	query := `SELECT ` + workflowCols + ` FROM verification_workflows ORDER BY category, name`
	args := []any{}
	if opts.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.VerificationWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: workflow rows: %w", err)
	}
	return workflows, nil
}
