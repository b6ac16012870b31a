package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendora/checkout/internal/idempotency"
)

const (
	// A status_code of zero marks a claimed key whose request is still in
	// flight. First writer wins the claim; a concurrent duplicate sees the
	// conflict and backs off.
	reserveIdempotencySQL = `INSERT INTO idempotency_keys (key, status_code, body)
		VALUES ($1, 0, '')
		ON CONFLICT (key) DO NOTHING`

	getIdempotencySQL = `SELECT status_code, body, order_id
		FROM idempotency_keys WHERE key = $1 AND status_code <> 0`

	saveIdempotencySQL = `UPDATE idempotency_keys
		SET status_code = $2, body = $3, order_id = $4 WHERE key = $1`

	releaseIdempotencySQL = `DELETE FROM idempotency_keys
		WHERE key = $1 AND status_code = 0`
)

var _ idempotency.Store = (*IdempotencyStore)(nil)

// IdempotencyStore implements idempotency.Store backed by PostgreSQL, so
// replay survives restarts and works across replicas.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore returns an IdempotencyStore that uses the given pool.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Reserve claims key before any stock is touched. Returns false when the
// key is already held by an in-flight request or has a completed response.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, reserveIdempotencySQL, key)
	if err != nil {
		return false, fmt.Errorf("reserving idempotency key %q: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get returns the stored response for key, or nil when unseen or still in
// flight.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*idempotency.StoredResponse, error) {
	var resp idempotency.StoredResponse
	err := s.pool.QueryRow(ctx, getIdempotencySQL, key).
		Scan(&resp.StatusCode, &resp.Body, &resp.OrderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting idempotency key %q: %w", key, err)
	}
	return &resp, nil
}

// Save fills in the response for a key this request reserved.
func (s *IdempotencyStore) Save(ctx context.Context, key string, response idempotency.StoredResponse) error {
	_, err := s.pool.Exec(ctx, saveIdempotencySQL,
		key, response.StatusCode, response.Body, response.OrderID)
	if err != nil {
		return fmt.Errorf("saving idempotency key %q: %w", key, err)
	}
	return nil
}

// Release frees a claimed key whose request failed. Completed keys are left
// untouched.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, releaseIdempotencySQL, key); err != nil {
		return fmt.Errorf("releasing idempotency key %q: %w", key, err)
	}
	return nil
}
