package idem

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps idempotency keys in the API's own database. Keys don't
// expire on their own here; the janitor worker sweeps old rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := s.pool.QueryRow(ctx, `
		SELECT fingerprint, resource_id FROM idempotency_keys WHERE key = $1
	`, key).Scan(&e.Fingerprint, &e.ResourceID)

	if errors.Is(err, pgx.ErrNoRows) {
		return e, ErrNotFound
	}
	return e, err
}

func (s *PostgresStore) Save(ctx context.Context, key string, e Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, fingerprint, resource_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, e.Fingerprint, e.ResourceID)
	return err
}
