package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// DisputeStore implements domain.DisputeStore using PostgreSQL.
type DisputeStore struct {
	pool *pgxpool.Pool
}

// NewDisputeStore creates a new DisputeStore backed by the given connection pool.
func NewDisputeStore(pool *pgxpool.Pool) *DisputeStore {
	return &DisputeStore{pool: pool}
}

const disputeCols = `id, request_id, disputer_id, bond_amount, reason,
	expected_outcome, status, verdict, resolved_by, created_at, resolved_at`

func scanDispute(row pgx.Row) (domain.OracleDispute, error) {
	var d domain.OracleDispute
	var status string
	var verdict, resolvedBy *string
	err := row.Scan(
		&d.ID, &d.RequestID, &d.DisputerID, &d.BondAmount, &d.Reason,
		&d.ExpectedOutcome, &status, &verdict, &resolvedBy, &d.CreatedAt, &d.ResolvedAt,
	)
	if err != nil {
		return domain.OracleDispute{}, err
	}
	d.Status = domain.DisputeStatus(status)
	if verdict != nil {
		d.Verdict = domain.DisputeVerdict(*verdict)
	}
	if resolvedBy != nil {
		d.ResolvedBy = *resolvedBy
	}
	return d, nil
}

// Create inserts a new dispute. A second open dispute for the same request
// violates the partial unique index and maps to ErrDisputeOpen.
func (s *DisputeStore) Create(ctx context.Context, d domain.OracleDispute) error {
	const query = `
		INSERT INTO oracle_disputes (
			id, request_id, disputer_id, bond_amount, reason,
			expected_outcome, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.RequestID, d.DisputerID, d.BondAmount, d.Reason,
		d.ExpectedOutcome, string(d.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDisputeOpen
		}
		return fmt.Errorf("postgres: create dispute %s: %w", d.ID, err)
	}
	return nil
}

// GetByID retrieves a dispute by its primary key.
func (s *DisputeStore) GetByID(ctx context.Context, id string) (domain.OracleDispute, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+disputeCols+` FROM oracle_disputes WHERE id = $1`, id)
	d, err := scanDispute(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OracleDispute{}, domain.ErrNotFound
		}
		return domain.OracleDispute{}, fmt.Errorf("postgres: get dispute %s: %w", id, err)
	}
	return d, nil
}

// GetOpenByRequest retrieves the open dispute for a request, if any.
func (s *DisputeStore) GetOpenByRequest(ctx context.Context, requestID string) (domain.OracleDispute, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+disputeCols+` FROM oracle_disputes WHERE request_id = $1 AND status = 'open'`,
		requestID)
	d, err := scanDispute(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OracleDispute{}, domain.ErrNotFound
		}
		return domain.OracleDispute{}, fmt.Errorf("postgres: get open dispute for request %s: %w", requestID, err)
	}
	return d, nil
}

// Resolve records the adjudicator's verdict on an open dispute. Resolving a
// dispute that is already closed returns ErrDisputeClosed.
func (s *DisputeStore) Resolve(ctx context.Context, id string, verdict domain.DisputeVerdict, resolvedBy string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE oracle_disputes
		SET status = 'resolved', verdict = $2, resolved_by = $3, resolved_at = $4
		WHERE id = $1 AND status = 'open'`,
		id, string(verdict), resolvedBy, at)
	if err != nil {
		return fmt.Errorf("postgres: resolve dispute %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDisputeClosed
	}
	return nil
}

// ListOpen returns open disputes, oldest first so adjudicators see the
// longest-waiting challenges at the top.
func (s *DisputeStore) ListOpen(ctx context.Context, opts domain.ListOpts) ([]domain.OracleDispute, error) {
	query := `SELECT ` + disputeCols + ` FROM oracle_disputes WHERE status = 'open' ORDER BY created_at ASC`
	args := []any{}
	if opts.Limit > 0 {
		query += " LIMIT $1"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open disputes: %w", err)
	}
	defer rows.Close()

	var disputes []domain.OracleDispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: dispute rows: %w", err)
	}
	return disputes, nil
}
