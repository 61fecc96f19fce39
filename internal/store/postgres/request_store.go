package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// RequestStore implements domain.RequestStore using PostgreSQL.
type RequestStore struct {
	pool *pgxpool.Pool
}

// NewRequestStore creates a new RequestStore backed by the given connection pool.
func NewRequestStore(pool *pgxpool.Pool) *RequestStore {
	return &RequestStore{pool: pool}
}

const requestCols = `id, market_id, request_type, proposer_id, proposed_outcome,
	confidence_score, evidence_summary, evidence_urls, evidence,
	bond_amount, bond_currency, challenge_window_ends_at, status,
	created_at, updated_at`

// scanRequest scans a single request row into a domain.OracleRequest.
func scanRequest(row pgx.Row) (domain.OracleRequest, error) {
	var r domain.OracleRequest
	var reqType, status string
	err := row.Scan(
		&r.ID, &r.MarketID, &reqType, &r.ProposerID, &r.ProposedOutcome,
		&r.ConfidenceScore, &r.EvidenceSummary, &r.EvidenceURLs, &r.Evidence,
		&r.BondAmount, &r.BondCurrency, &r.ChallengeWindowEndsAt, &status,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return domain.OracleRequest{}, err
	}
	r.RequestType = domain.RequestType(reqType)
	r.Status = domain.RequestStatus(status)
	return r, nil
}

// Create inserts a new resolution request. A second live request for the same
// market violates the partial unique index and maps to ErrAlreadyExists.
func (s *RequestStore) Create(ctx context.Context, r domain.OracleRequest) error {
	const query = `
		INSERT INTO oracle_requests (
			id, market_id, request_type, proposer_id, proposed_outcome,
			confidence_score, evidence_summary, evidence_urls, evidence,
			bond_amount, bond_currency, challenge_window_ends_at, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.MarketID, string(r.RequestType), r.ProposerID, r.ProposedOutcome,
		r.ConfidenceScore, r.EvidenceSummary, r.EvidenceURLs, r.Evidence,
		r.BondAmount, r.BondCurrency, r.ChallengeWindowEndsAt, string(r.Status),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create request %s: %w", r.ID, err)
	}
	return nil
}

// GetByID retrieves a request by its primary key.
func (s *RequestStore) GetByID(ctx context.Context, id string) (domain.OracleRequest, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestCols+` FROM oracle_requests WHERE id = $1`, id)
	r, err := scanRequest(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OracleRequest{}, domain.ErrNotFound
		}
		return domain.OracleRequest{}, fmt.Errorf("postgres: get request %s: %w", id, err)
	}
	return r, nil
}

// GetActiveByMarket retrieves the single live (non-terminal) request for a market.
func (s *RequestStore) GetActiveByMarket(ctx context.Context, marketID string) (domain.OracleRequest, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+requestCols+` FROM oracle_requests
		WHERE market_id = $1 AND status NOT IN ('finalized', 'failed')`,
		marketID)
	r, err := scanRequest(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.OracleRequest{}, domain.ErrNotFound
		}
		return domain.OracleRequest{}, fmt.Errorf("postgres: get active request for market %s: %w", marketID, err)
	}
	return r, nil
}

// TransitionStatus moves a request from one status to another. The conditional
// UPDATE makes concurrent transitions race-safe: only one caller observes the
// row in the expected state.
func (s *RequestStore) TransitionStatus(ctx context.Context, id string, from, to domain.RequestStatus) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE oracle_requests
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`,
		id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("postgres: transition request %s %s->%s: %w", id, from, to, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotChallengeable
	}
	return nil
}

// SetOutcome updates the proposed outcome and confidence on a request.
func (s *RequestStore) SetOutcome(ctx context.Context, id, outcome string, confidence float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE oracle_requests
		SET proposed_outcome = $2, confidence_score = $3, updated_at = NOW()
		WHERE id = $1`,
		id, outcome, confidence)
	if err != nil {
		return fmt.Errorf("postgres: set request %s outcome: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredProposed returns proposed requests whose challenge window ended
// on or before now. The sweeper finalizes these.
func (s *RequestStore) ListExpiredProposed(ctx context.Context, now time.Time, limit int) ([]domain.OracleRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestCols+` FROM oracle_requests
		WHERE status = 'proposed' AND challenge_window_ends_at <= $1
		ORDER BY challenge_window_ends_at ASC
		LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired proposed: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByMarket returns all requests for a market, newest first.
func (s *RequestStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.OracleRequest, error) {
	query := `SELECT ` + requestCols + ` FROM oracle_requests WHERE market_id = $1 ORDER BY created_at DESC`
	args := []any{marketID}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list requests by market: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStatus returns requests in the given status, newest first.
func (s *RequestStore) ListByStatus(ctx context.Context, status domain.RequestStatus, opts domain.ListOpts) ([]domain.OracleRequest, error) {
	query := `SELECT ` + requestCols + ` FROM oracle_requests WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list requests by status: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]domain.OracleRequest, error) {
	var reqs []domain.OracleRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan request: %w", err)
		}
		reqs = append(reqs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: request rows: %w", err)
	}
	return reqs, nil
}
