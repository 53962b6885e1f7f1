package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/platform/metrics"
	"github.com/diagnosis/visitor-desk/internal/platform/photo"
	"github.com/diagnosis/visitor-desk/internal/repo/postgres"
	"github.com/diagnosis/visitor-desk/pkg/events"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	"github.com/google/uuid"
)

type VisitorService interface {
	CheckIn(ctx context.Context, req *domain.CheckInRequest, actor *domain.Actor) (*domain.Visitor, error)
	CheckOut(ctx context.Context, id string) (*domain.Visitor, error)
	List(ctx context.Context, q domain.ListQuery) ([]domain.Visitor, error)
	Get(ctx context.Context, id string) (*domain.Visitor, error)
}

type visitorService struct {
	repo    postgres.VisitorRepo
	photos  photo.Store
	events  events.Publisher
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewVisitorService(
	repo postgres.VisitorRepo,
	photos photo.Store,
	publisher events.Publisher,
	m *metrics.Metrics,
) VisitorService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &visitorService{
		repo:    repo,
		photos:  photos,
		events:  publisher,
		metrics: m,
		now:     time.Now,
	}
}

func (s *visitorService) CheckIn(ctx context.Context, req *domain.CheckInRequest, actor *domain.Actor) (*domain.Visitor, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	v := &domain.Visitor{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Phone:        req.Phone,
		Address:      req.Address,
		Purpose:      req.Purpose,
		Company:      req.Company,
		PersonToMeet: req.PersonToMeet,
		PhotoRef:     s.storePhoto(ctx, req),
		CheckinTime:  s.now().Unix(),
	}
	if actor != nil {
		v.CreatedBy = actor.UserID
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, &domain.StorageError{Op: "create visitor", Err: err}
	}

	if err := s.events.Publish(ctx, events.VisitorCheckedIn, events.VisitorCheckedInEvent{
		VisitorID:    v.ID,
		Name:         v.Name,
		Company:      v.Company,
		PersonToMeet: v.PersonToMeet,
		CheckinTime:  v.CheckinTime,
		CreatedBy:    v.CreatedBy,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish check-in event", "error", err, "visitor_id", v.ID)
	}
	s.metrics.IncrementCheckIn()

	logger.InfoContext(ctx, "Visitor checked in", "visitor_id", v.ID, "by", actor.Label())
	return v, nil
}

// storePhoto never fails the check-in; a photo that cannot be stored is dropped.
func (s *visitorService) storePhoto(ctx context.Context, req *domain.CheckInRequest) *string {
	if s.photos == nil || (len(req.PhotoData) == 0 && req.Photo == "") {
		return nil
	}
	data := req.PhotoData
	if len(data) == 0 {
		decoded, err := photo.DecodeInline(req.Photo)
		if err != nil {
			logger.WarnContext(ctx, "Discarding undecodable photo", "error", err)
			s.metrics.IncrementPhotoFailure()
			return nil
		}
		data = decoded
	}
	ref, err := s.photos.Save(ctx, data)
	if err != nil {
		logger.WarnContext(ctx, "Failed to store photo, continuing without it", "error", err)
		s.metrics.IncrementPhotoFailure()
		return nil
	}
	return &ref
}

func (s *visitorService) CheckOut(ctx context.Context, id string) (*domain.Visitor, error) {
	at := s.now().Unix()
	v, err := s.repo.Checkout(ctx, id, at)
	if errors.Is(err, domain.ErrAlreadyCheckedOut) {
		return nil, err
	}
	if err != nil {
		return nil, &domain.StorageError{Op: "checkout visitor", Err: err}
	}
	if v == nil {
		return nil, &domain.NotFoundError{Resource: "visitor", ID: id}
	}
	if v.CheckoutTime == nil {
		v.CheckoutTime = &at
	}

	if err := s.events.Publish(ctx, events.VisitorCheckedOut, events.VisitorCheckedOutEvent{
		VisitorID:    v.ID,
		CheckinTime:  v.CheckinTime,
		CheckoutTime: at,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to publish check-out event", "error", err, "visitor_id", v.ID)
	}
	s.metrics.IncrementCheckOut()

	logger.InfoContext(ctx, "Visitor checked out", "visitor_id", v.ID)
	return v, nil
}

// List returns visitors whose check-in lies in [From, To], newest first.
func (s *visitorService) List(ctx context.Context, q domain.ListQuery) ([]domain.Visitor, error) {
	from := int64(0)
	to := s.now().Unix()
	if q.From != nil {
		n, err := domain.NormalizeTimestamp(*q.From)
		if err != nil {
			return nil, err
		}
		from = n
	}
	if q.To != nil {
		n, err := domain.NormalizeTimestamp(*q.To)
		if err != nil {
			return nil, err
		}
		to = n
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list visitors", Err: err}
	}

	out := make([]domain.Visitor, 0, len(all))
	for i := range all {
		v := &all[i]
		if v.CheckinTime < from || v.CheckinTime > to || !q.Matches(v) {
			continue
		}
		out = append(out, *v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CheckinTime != out[j].CheckinTime {
			return out[i].CheckinTime > out[j].CheckinTime
		}
		return out[i].ID < out[j].ID
	})

	return paginate(out, q.Limit, q.Offset), nil
}

func paginate(vs []domain.Visitor, limit, offset int) []domain.Visitor {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(vs) {
		return []domain.Visitor{}
	}
	vs = vs[offset:]
	if limit > 0 && limit < len(vs) {
		vs = vs[:limit]
	}
	return vs
}

func (s *visitorService) Get(ctx context.Context, id string) (*domain.Visitor, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &domain.StorageError{Op: "get visitor", Err: err}
	}
	if v == nil {
		return nil, &domain.NotFoundError{Resource: "visitor", ID: id}
	}
	return v, nil
}
