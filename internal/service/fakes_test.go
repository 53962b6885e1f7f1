package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/repo/postgres"
)

// ---------- Mocks ----------

type fakeVisitorRepo struct {
	mu       sync.Mutex
	visitors map[string]domain.Visitor
	err      error
}

func newFakeVisitorRepo(vs ...domain.Visitor) *fakeVisitorRepo {
	r := &fakeVisitorRepo{visitors: make(map[string]domain.Visitor)}
	for _, v := range vs {
		r.visitors[v.ID] = v
	}
	return r
}

func (r *fakeVisitorRepo) Create(_ context.Context, v *domain.Visitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.visitors[v.ID] = *v
	return nil
}

func (r *fakeVisitorRepo) GetByID(_ context.Context, id string) (*domain.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.visitors[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *fakeVisitorRepo) Checkout(_ context.Context, id string, at int64) (*domain.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.visitors[id]
	if !ok {
		return nil, nil
	}
	if v.CheckoutTime != nil {
		return nil, domain.ErrAlreadyCheckedOut
	}
	v.CheckoutTime = &at
	r.visitors[id] = v
	return &v, nil
}

func (r *fakeVisitorRepo) ListAll(_ context.Context) ([]domain.Visitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.Visitor, 0, len(r.visitors))
	for _, v := range r.visitors {
		out = append(out, v)
	}
	return out, nil
}

func (r *fakeVisitorRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

type fakePhotoStore struct {
	saved [][]byte
	err   error
}

func (s *fakePhotoStore) Save(_ context.Context, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, data)
	return "photo.jpg", nil
}

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeUsersRepo struct {
	users map[string]*domain.User
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{users: make(map[string]*domain.User)}
}

func (m *fakeUsersRepo) Create(_ context.Context, username, hash string) (*domain.User, error) {
	if _, exists := m.users[username]; exists {
		return nil, postgres.ErrDuplicate
	}
	u := &domain.User{ID: int64(len(m.users) + 1), Username: username, PasswordHash: hash, CreatedAt: time.Now()}
	m.users[username] = u
	return u, nil
}

func (m *fakeUsersRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return m.users[username], nil
}

func (m *fakeUsersRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *fakeUsersRepo) Count(context.Context) (int, error) { return len(m.users), nil }

type fakeOTPRepo struct {
	nextID     int64
	challenges []*domain.OTPChallenge
}

func (m *fakeOTPRepo) Create(_ context.Context, phone, codeHash string, expiry time.Time) (int64, error) {
	m.nextID++
	m.challenges = append(m.challenges, &domain.OTPChallenge{
		ID: m.nextID, Phone: phone, CodeHash: codeHash, Expiry: expiry, CreatedAt: time.Now(),
	})
	return m.nextID, nil
}

func (m *fakeOTPRepo) Latest(_ context.Context, phone string) (*domain.OTPChallenge, error) {
	for i := len(m.challenges) - 1; i >= 0; i-- {
		if m.challenges[i].Phone == phone {
			c := *m.challenges[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (m *fakeOTPRepo) find(id int64) *domain.OTPChallenge {
	for _, c := range m.challenges {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *fakeOTPRepo) IncrementAttempts(_ context.Context, id int64) error {
	if c := m.find(id); c != nil {
		c.Attempts++
	}
	return nil
}

func (m *fakeOTPRepo) MarkUsed(_ context.Context, id int64) (bool, error) {
	c := m.find(id)
	if c == nil || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (m *fakeOTPRepo) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type fakeSender struct {
	lastPhone string
	lastCode  string
	err       error
}

func (s *fakeSender) SendOTP(_ context.Context, phone, code string) error {
	s.lastPhone = phone
	s.lastCode = code
	return s.err
}

var errBoom = errors.New("boom")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
