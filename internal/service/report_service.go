package service

import (
	"context"
	"time"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/platform/metrics"
	"github.com/diagnosis/visitor-desk/internal/repo/postgres"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// ReportService buckets check-ins by calendar day and month in a fixed location.
// Each call reads the full visitor set once.
type ReportService interface {
	DailyCounts(ctx context.Context, days int) ([]domain.DailyCount, error)
	MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error)
	Summary(ctx context.Context) (*domain.Summary, error)
}

type reportService struct {
	repo    postgres.VisitorRepo
	loc     *time.Location
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReportService(repo postgres.VisitorRepo, loc *time.Location, m *metrics.Metrics) ReportService {
	if loc == nil {
		loc = time.Local
	}
	return &reportService{repo: repo, loc: loc, metrics: m, now: time.Now}
}

// DailyCounts returns one entry per day, oldest first and today last. days is clamped to [1, 30].
func (s *reportService) DailyCounts(ctx context.Context, days int) ([]domain.DailyCount, error) {
	defer s.metrics.ObserveReport("daily", time.Now())
	days = domain.Clamp(days, domain.MinReportDays, domain.MaxReportDays)

	counts, err := s.bucket(ctx, dayLayout)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	out := make([]domain.DailyCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		key := today.AddDate(0, 0, -i).Format(dayLayout)
		out = append(out, domain.DailyCount{Date: key, Count: counts[key]})
	}
	return out, nil
}

// MonthlyCounts returns one entry per month, oldest first. months is clamped to [1, 24].
func (s *reportService) MonthlyCounts(ctx context.Context, months int) ([]domain.MonthlyCount, error) {
	defer s.metrics.ObserveReport("monthly", time.Now())
	months = domain.Clamp(months, domain.MinReportMonths, domain.MaxReportMonths)

	counts, err := s.bucket(ctx, monthLayout)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	out := make([]domain.MonthlyCount, 0, months)
	for i := months - 1; i >= 0; i-- {
		key := first.AddDate(0, -i, 0).Format(monthLayout)
		out = append(out, domain.MonthlyCount{Month: key, Count: counts[key]})
	}
	return out, nil
}

func (s *reportService) Summary(ctx context.Context) (*domain.Summary, error) {
	defer s.metrics.ObserveReport("summary", time.Now())

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list visitors", Err: err}
	}

	today := s.now().In(s.loc).Format(dayLayout)
	sum := &domain.Summary{Total: len(all)}
	for i := range all {
		if !all[i].CheckedOut() {
			sum.CheckedIn++
		}
		if time.Unix(all[i].CheckinTime, 0).In(s.loc).Format(dayLayout) == today {
			sum.CheckedToday++
		}
	}
	return sum, nil
}

// bucket counts check-ins keyed by their local calendar period.
func (s *reportService) bucket(ctx context.Context, layout string) (map[string]int, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, &domain.StorageError{Op: "list visitors", Err: err}
	}
	counts := make(map[string]int)
	for i := range all {
		counts[time.Unix(all[i].CheckinTime, 0).In(s.loc).Format(layout)]++
	}
	return counts, nil
}
