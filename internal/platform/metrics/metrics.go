package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the visitor desk collectors. All methods are safe on a nil receiver.
type Metrics struct {
	CheckIns       prometheus.Counter
	CheckOuts      prometheus.Counter
	PhotoFailures  prometheus.Counter
	OTPSent        prometheus.Counter
	ReportDuration *prometheus.HistogramVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CheckIns: f.NewCounter(prometheus.CounterOpts{
			Name: "visitor_checkins_total",
			Help: "Total number of visitor check-ins",
		}),
		CheckOuts: f.NewCounter(prometheus.CounterOpts{
			Name: "visitor_checkouts_total",
			Help: "Total number of visitor check-outs",
		}),
		PhotoFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "visitor_photo_failures_total",
			Help: "Photos that could not be stored; the visitor was created without one",
		}),
		OTPSent: f.NewCounter(prometheus.CounterOpts{
			Name: "visitor_otp_sent_total",
			Help: "One-time login codes issued",
		}),
		ReportDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitor_report_duration_seconds",
			Help:    "Duration of report aggregation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"report"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "visitor_http_requests_total",
			Help: "HTTP requests by route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visitor_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) IncrementCheckIn() {
	if m == nil {
		return
	}
	m.CheckIns.Inc()
}

func (m *Metrics) IncrementCheckOut() {
	if m == nil {
		return
	}
	m.CheckOuts.Inc()
}

func (m *Metrics) IncrementPhotoFailure() {
	if m == nil {
		return
	}
	m.PhotoFailures.Inc()
}

func (m *Metrics) IncrementOTPSent() {
	if m == nil {
		return
	}
	m.OTPSent.Inc()
}

// ObserveReport records the duration of a report. Call with time.Now() at the start.
func (m *Metrics) ObserveReport(report string, start time.Time) {
	if m == nil {
		return
	}
	m.ReportDuration.WithLabelValues(report).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
