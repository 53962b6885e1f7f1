package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyRepo keeps replayable responses in Postgres. It backs the idempotency
// middleware when no Redis is configured.
type IdempotencyRepo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	CleanupExpired(ctx context.Context) (int64, error)
}

type IdempotencyRepoImpl struct {
	pool *pgxpool.Pool
}

func NewIdempotencyRepo(pool *pgxpool.Pool) *IdempotencyRepoImpl {
	return &IdempotencyRepoImpl{pool: pool}
}

// Get returns "" for a missing or expired key.
func (r *IdempotencyRepoImpl) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var body string
	err := r.pool.QueryRow(ctx,
		`SELECT response FROM idempotency_keys WHERE key_hash=$1 AND expires_at > now()`, key,
	).Scan(&body)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return body, err
}

// Set keeps the first stored response for a key.
func (r *IdempotencyRepoImpl) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key_hash, response, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key_hash) DO UPDATE SET
			response = EXCLUDED.response,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= now()`,
		key, value, time.Now().Add(ttl),
	)
	return err
}

func (r *IdempotencyRepoImpl) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

var _ IdempotencyRepo = (*IdempotencyRepoImpl)(nil)
