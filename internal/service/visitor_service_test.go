package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/platform/metrics"
	"github.com/diagnosis/visitor-desk/pkg/events"
)

type visitorFixture struct {
	svc     *visitorService
	repo    *fakeVisitorRepo
	photos  *fakePhotoStore
	pub     *fakePublisher
	metrics *metrics.Metrics
}

func newVisitorFixture(t *testing.T, now time.Time, seed ...domain.Visitor) *visitorFixture {
	t.Helper()
	f := &visitorFixture{
		repo:    newFakeVisitorRepo(seed...),
		photos:  &fakePhotoStore{},
		pub:     &fakePublisher{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewVisitorService(f.repo, f.photos, f.pub, f.metrics).(*visitorService)
	f.svc.now = fixedClock(now)
	return f
}

func ptr[T any](v T) *T { return &v }

func TestCheckIn_AssignsFreshIDsAndServerTime(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	f := newVisitorFixture(t, now)
	ctx := context.Background()

	a, err := f.svc.CheckIn(ctx, &domain.CheckInRequest{Name: "  Alice  ", Company: "Acme", CheckinTime: 42}, nil)
	require.NoError(t, err)
	b, err := f.svc.CheckIn(ctx, &domain.CheckInRequest{Name: "Bob", CheckinTime: "2001-01-01"}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "Alice", a.Name)
	assert.Equal(t, now.Unix(), a.CheckinTime, "client checkin_time must be ignored")
	assert.Equal(t, now.Unix(), b.CheckinTime)
	assert.Nil(t, a.CheckoutTime)
	assert.Nil(t, a.CreatedBy)
	assert.Nil(t, a.PhotoRef)

	assert.Equal(t, 2, f.repo.count())
	assert.Equal(t, []string{events.VisitorCheckedIn, events.VisitorCheckedIn}, f.pub.subjects)
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.CheckIns))
}

func TestCheckIn_RejectsBlankName(t *testing.T) {
	f := newVisitorFixture(t, time.Now())
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n"))

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: name, Photo: png}, nil)
		var vErr *domain.ValidationError
		require.True(t, errors.As(err, &vErr), "name %q: got %v", name, err)
		assert.Equal(t, "name", vErr.Field)
	}

	assert.Zero(t, f.repo.count())
	assert.Empty(t, f.photos.saved, "no photo stored for a rejected visitor")
	assert.Empty(t, f.pub.subjects)
}

func TestCheckIn_PhotoAndActor(t *testing.T) {
	f := newVisitorFixture(t, time.Now())
	raw := []byte("\x89PNG\r\n\x1a\nrest")
	actor := &domain.Actor{UserID: ptr(int64(9)), Username: "frontdesk", Method: domain.AuthMethodPassword}

	v, err := f.svc.CheckIn(context.Background(), &domain.CheckInRequest{
		Name:  "Alice",
		Photo: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
	}, actor)
	require.NoError(t, err)
	require.NotNil(t, v.PhotoRef)
	assert.Equal(t, "photo.jpg", *v.PhotoRef)
	assert.Equal(t, raw, f.photos.saved[0])
	require.NotNil(t, v.CreatedBy)
	assert.Equal(t, int64(9), *v.CreatedBy)

	otpActor := &domain.Actor{Phone: "+15550001", Method: domain.AuthMethodOTP}
	v, err = f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: "Bob", PhotoData: raw}, otpActor)
	require.NoError(t, err)
	assert.Nil(t, v.CreatedBy)
	assert.Len(t, f.photos.saved, 2)
}

func TestCheckIn_PhotoFailureDegrades(t *testing.T) {
	f := newVisitorFixture(t, time.Now())
	f.photos.err = errBoom

	v, err := f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: "Alice", PhotoData: []byte("x")}, nil)
	require.NoError(t, err)
	assert.Nil(t, v.PhotoRef)

	v, err = f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: "Bob", Photo: "%%%"}, nil)
	require.NoError(t, err)
	assert.Nil(t, v.PhotoRef)

	assert.Equal(t, 2, f.repo.count())
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.PhotoFailures))
}

func TestCheckIn_StorageErrorAndPublishFailure(t *testing.T) {
	f := newVisitorFixture(t, time.Now())
	f.pub.err = errBoom

	_, err := f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: "Alice"}, nil)
	require.NoError(t, err, "publish failures are logged, not returned")

	f.repo.err = errBoom
	_, err = f.svc.CheckIn(context.Background(), &domain.CheckInRequest{Name: "Bob"}, nil)
	var sErr *domain.StorageError
	require.True(t, errors.As(err, &sErr))
	assert.ErrorIs(t, err, errBoom)
}

func TestCheckOut(t *testing.T) {
	checkin := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	f := newVisitorFixture(t, checkin.Add(2*time.Hour),
		domain.Visitor{ID: "v1", Name: "Alice", CheckinTime: checkin.Unix()})
	ctx := context.Background()

	invokedAt := f.svc.now().Unix()
	v, err := f.svc.CheckOut(ctx, "v1")
	require.NoError(t, err)
	require.NotNil(t, v.CheckoutTime)
	assert.GreaterOrEqual(t, *v.CheckoutTime, invokedAt)

	f.svc.now = fixedClock(checkin.Add(3 * time.Hour))
	_, err = f.svc.CheckOut(ctx, "v1")
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedOut)

	stored, err := f.svc.Get(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, invokedAt, *stored.CheckoutTime, "second checkout must not overwrite")

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CheckOuts))
	assert.Equal(t, []string{events.VisitorCheckedOut}, f.pub.subjects)
}

func TestCheckOut_UnknownID(t *testing.T) {
	f := newVisitorFixture(t, time.Now(), domain.Visitor{ID: "v1", Name: "Alice", CheckinTime: 100})

	_, err := f.svc.CheckOut(context.Background(), "missing")
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ID)

	all, _ := f.repo.ListAll(context.Background())
	require.Len(t, all, 1)
	assert.Nil(t, all[0].CheckoutTime)
}

func TestList_WindowOrderingAndFilters(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	out := now.Add(-time.Hour).Unix()
	f := newVisitorFixture(t, now,
		domain.Visitor{ID: "a", Name: "Alice", Company: "Acme", CheckinTime: now.Add(-3 * time.Hour).Unix()},
		domain.Visitor{ID: "b", Name: "Bob", Company: "Globex", CheckinTime: now.Add(-2 * time.Hour).Unix(), CheckoutTime: &out},
		domain.Visitor{ID: "c", Name: "Carol", Company: "Acme", CheckinTime: now.Add(-2 * time.Hour).Unix()},
		domain.Visitor{ID: "old", Name: "Dave", CheckinTime: now.AddDate(0, 0, -10).Unix()},
		domain.Visitor{ID: "future", Name: "Eve", CheckinTime: now.Add(time.Hour).Unix()},
	)
	ctx := context.Background()

	ids := func(vs []domain.Visitor) []string {
		out := make([]string, len(vs))
		for i := range vs {
			out[i] = vs[i].ID
		}
		return out
	}

	all, err := f.svc.List(ctx, domain.ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a", "old"}, ids(all), "default window is [0, now], newest first, ties by id")

	fromMs := now.AddDate(0, 0, -1).UnixMilli()
	recent, err := f.svc.List(ctx, domain.ListQuery{From: &fromMs})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids(recent), "millisecond bounds are normalized")

	exact := now.Add(-2 * time.Hour).Unix()
	pinned, err := f.svc.List(ctx, domain.ListQuery{From: &exact, To: &exact})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(pinned), "bounds are inclusive")

	acme, err := f.svc.List(ctx, domain.ListQuery{Search: "acme", Status: domain.StatusCheckedIn})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(acme))

	page, err := f.svc.List(ctx, domain.ListQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a"}, ids(page))

	empty, err := f.svc.List(ctx, domain.ListQuery{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGet_NotFound(t *testing.T) {
	f := newVisitorFixture(t, time.Now())
	_, err := f.svc.Get(context.Background(), "nope")
	var nf *domain.NotFoundError
	assert.True(t, errors.As(err, &nf))
}
