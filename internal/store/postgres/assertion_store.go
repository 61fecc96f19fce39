package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// AssertionStore implements domain.AssertionStore using PostgreSQL.
type AssertionStore struct {
	pool *pgxpool.Pool
}

// NewAssertionStore creates a new AssertionStore backed by the given connection pool.
func NewAssertionStore(pool *pgxpool.Pool) *AssertionStore {
	return &AssertionStore{pool: pool}
}

// Insert appends an assertion to the log.
func (s *AssertionStore) Insert(ctx context.Context, a domain.Assertion) error {
	const query = `
		INSERT INTO assertions (id, market_id, asserter_id, outcome, bond_amount, asserted_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.MarketID, a.AsserterID, a.Outcome, a.BondAmount, a.AssertedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: insert assertion %s: %w", a.ID, err)
	}
	return nil
}

// ListByMarket returns assertions for a market, newest first.
func (s *AssertionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Assertion, error) {
	query := `
		SELECT id, market_id, asserter_id, outcome, bond_amount, asserted_at
		FROM assertions WHERE market_id = $1 ORDER BY asserted_at DESC`
	args := []any{marketID}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assertions: %w", err)
	}
	defer rows.Close()

	var out []domain.Assertion
	for rows.Next() {
		var a domain.Assertion
		if err := rows.Scan(&a.ID, &a.MarketID, &a.AsserterID, &a.Outcome, &a.BondAmount, &a.AssertedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan assertion: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: assertion rows: %w", err)
	}
	return out, nil
}
