package postgres

import (
	"context"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type VisitorRepo interface {
	Create(ctx context.Context, v *domain.Visitor) error
	GetByID(ctx context.Context, id string) (*domain.Visitor, error)
	// Checkout stamps checkout_time once. It returns nil,nil for an unknown id and
	// domain.ErrAlreadyCheckedOut when the visitor has already left.
	Checkout(ctx context.Context, id string, at int64) (*domain.Visitor, error)
	ListAll(ctx context.Context) ([]domain.Visitor, error)
}

type VisitorRepoImpl struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewVisitorRepo reads zone-less date strings left in time columns in loc.
// A nil loc means time.Local.
func NewVisitorRepo(pool *pgxpool.Pool, loc *time.Location) *VisitorRepoImpl {
	if loc == nil {
		loc = time.Local
	}
	return &VisitorRepoImpl{pool: pool, loc: loc}
}

// Time columns are read as text and normalized in Go so rows written with
// milliseconds by older clients come back in seconds.
const visitorCols = `id::text, name, phone, address, purpose, company, person_to_meet,
photo, checkin_time::text, checkout_time::text, created_by`

func (r *VisitorRepoImpl) Create(ctx context.Context, v *domain.Visitor) error {
	const q = `INSERT INTO visitors (
    id, name, phone, address, purpose, company, person_to_meet,
    photo, checkin_time, checkout_time, created_by
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q,
		v.ID, v.Name, v.Phone, v.Address, v.Purpose, v.Company, v.PersonToMeet,
		v.PhotoRef, v.CheckinTime, v.CheckoutTime, v.CreatedBy,
	)
	return err
}

func (r *VisitorRepoImpl) GetByID(ctx context.Context, id string) (*domain.Visitor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	const q = `SELECT ` + visitorCols + ` FROM visitors WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVisitor(ctx, r.pool.QueryRow(ctx, q, id), r.loc)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return v, err
}

func (r *VisitorRepoImpl) Checkout(ctx context.Context, id string, at int64) (*domain.Visitor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	const q = `UPDATE visitors SET checkout_time=$2
WHERE id=$1 AND checkout_time IS NULL
RETURNING ` + visitorCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	v, err := scanVisitor(ctx, r.pool.QueryRow(ctx, q, id, at), r.loc)
	if err == nil {
		return v, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM visitors WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return nil, domain.ErrAlreadyCheckedOut
}

func (r *VisitorRepoImpl) ListAll(ctx context.Context) ([]domain.Visitor, error) {
	const q = `SELECT ` + visitorCols + ` FROM visitors ORDER BY checkin_time DESC, id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vs []domain.Visitor
	for rows.Next() {
		v, err := scanVisitor(ctx, rows, r.loc)
		if err != nil {
			return nil, err
		}
		vs = append(vs, *v)
	}
	return vs, rows.Err()
}

func scanVisitor(ctx context.Context, row pgx.Row, loc *time.Location) (*domain.Visitor, error) {
	var (
		v        domain.Visitor
		checkin  string
		checkout *string
	)
	if err := row.Scan(
		&v.ID, &v.Name, &v.Phone, &v.Address, &v.Purpose, &v.Company, &v.PersonToMeet,
		&v.PhotoRef, &checkin, &checkout, &v.CreatedBy,
	); err != nil {
		return nil, err
	}

	ts, err := domain.NormalizeTimestampIn(checkin, loc)
	if err != nil {
		logger.WarnContext(ctx, "Illegible checkin_time, using 0", "visitor_id", v.ID, "raw", checkin, "error", err)
		ts = 0
	}
	v.CheckinTime = ts

	out, err := domain.NormalizeOptionalTimestamp(checkout, loc)
	if err != nil {
		logger.WarnContext(ctx, "Illegible checkout_time, treating as checked in", "visitor_id", v.ID, "error", err)
		out = nil
	}
	v.CheckoutTime = out
	return &v, nil
}

var _ VisitorRepo = (*VisitorRepoImpl)(nil)
