package postgres

import (
	"context"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OTPRepo stores one-time login codes. Codes are bcrypt hashes; the plain code never reaches the database.
type OTPRepo interface {
	Create(ctx context.Context, phone, codeHash string, expiry time.Time) (int64, error)
	// Latest returns the newest challenge for phone, or nil.
	Latest(ctx context.Context, phone string) (*domain.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, id int64) error
	// MarkUsed consumes the challenge; false means it was already used.
	MarkUsed(ctx context.Context, id int64) (bool, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type OTPRepoImpl struct{ pool *pgxpool.Pool }

func NewOTPRepo(pool *pgxpool.Pool) *OTPRepoImpl { return &OTPRepoImpl{pool: pool} }

func (r *OTPRepoImpl) Create(ctx context.Context, phone, codeHash string, expiry time.Time) (int64, error) {
	const q = `INSERT INTO otps (phone, code, expiry) VALUES ($1,$2,$3) RETURNING id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var id int64
	err := r.pool.QueryRow(ctx, q, phone, codeHash, expiry).Scan(&id)
	return id, err
}

func (r *OTPRepoImpl) Latest(ctx context.Context, phone string) (*domain.OTPChallenge, error) {
	const q = `
		SELECT id, phone, code, expiry, used, attempts, created_at
		FROM otps
		WHERE phone=$1
		ORDER BY id DESC
		LIMIT 1
	`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.OTPChallenge
	err := r.pool.QueryRow(ctx, q, phone).Scan(
		&o.ID, &o.Phone, &o.CodeHash, &o.Expiry, &o.Used, &o.Attempts, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OTPRepoImpl) IncrementAttempts(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.pool.Exec(ctx, `UPDATE otps SET attempts=attempts+1 WHERE id=$1`, id)
	return err
}

func (r *OTPRepoImpl) MarkUsed(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `UPDATE otps SET used=true WHERE id=$1 AND used=false`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *OTPRepoImpl) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM otps WHERE expiry < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ OTPRepo = (*OTPRepoImpl)(nil)
