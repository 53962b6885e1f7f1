package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrDuplicate = errors.New("duplicate key")

type UsersRepo interface {
	Create(ctx context.Context, username, hash string) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id int64) (*domain.User, error)
	Count(ctx context.Context) (int, error)
}

type UsersRepoImpl struct{ pool *pgxpool.Pool }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepoImpl { return &UsersRepoImpl{pool: pool} }

const userCols = `id, username, password_hash, created_at`

// Create returns ErrDuplicate when the username is taken.
func (r *UsersRepoImpl) Create(ctx context.Context, username, hash string) (*domain.User, error) {
	const q = `INSERT INTO users (username, password_hash) VALUES ($1,$2) RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var u domain.User
	if err := r.pool.QueryRow(ctx, q, username, hash).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return &u, nil
}

func (r *UsersRepoImpl) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE username=$1`
	return r.findOne(ctx, q, username)
}

func (r *UsersRepoImpl) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	return r.findOne(ctx, q, id)
}

func (r *UsersRepoImpl) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&n)
	return n, err
}

func (r *UsersRepoImpl) findOne(ctx context.Context, q string, arg any) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var u domain.User
	err := r.pool.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pgconn.PgError)
	return ok && pgErr.Code == "23505"
}

var _ UsersRepo = (*UsersRepoImpl)(nil)
