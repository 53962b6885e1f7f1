package router

import (
	"net/http"
	"time"

	"github.com/diagnosis/visitor-desk/internal/http/handlers"
	"github.com/diagnosis/visitor-desk/internal/http/middleware"
	"github.com/diagnosis/visitor-desk/internal/platform/photo"
	"github.com/diagnosis/visitor-desk/internal/service"
	mw "github.com/diagnosis/visitor-desk/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps is everything the HTTP surface needs. Optional fields may be left zero.
type Deps struct {
	Visitors service.VisitorService
	Reports  service.ReportService
	Auth     service.AuthService

	JWTSecret      string
	PublicBaseURL  string
	MaxBodyBytes   int64
	Location       *time.Location
	PhotoDir       string
	AllowedOrigins []string

	Idempotency    mw.IdempotencyStore
	IdempotencyTTL time.Duration

	RateCounter   middleware.Counter
	OTPRateLimit  int
	OTPRateWindow time.Duration

	Observer       mw.HTTPObserver
	MetricsHandler http.Handler
	HealthChecks   map[string]mw.HealthCheck
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("visitor-desk"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Health(d.HealthChecks))
	if d.Observer != nil {
		r.Use(mw.Metrics(d.Observer))
	}

	requireAuth := middleware.RequireJWT(d.JWTSecret)
	optionalAuth := middleware.OptionalJWT(d.JWTSecret)

	var idempotency func(http.Handler) http.Handler
	if d.Idempotency != nil {
		idempotency = mw.IdempotencyMiddleware(d.Idempotency, d.IdempotencyTTL)
	}

	var otpLimit func(http.Handler) http.Handler
	if d.RateCounter != nil && d.OTPRateLimit > 0 {
		otpLimit = middleware.NewRateLimiter(d.RateCounter, middleware.RateLimitConfig{
			Requests: d.OTPRateLimit,
			Window:   d.OTPRateWindow,
			Prefix:   "otp:",
		}).Middleware()
	}

	visitors := &handlers.VisitorHandler{
		Service:       d.Visitors,
		PublicBaseURL: d.PublicBaseURL,
		MaxBodyBytes:  d.MaxBodyBytes,
		Location:      d.Location,
		RequireAuth:   requireAuth,
		OptionalAuth:  optionalAuth,
		Idempotency:   idempotency,
	}
	r.Mount("/visitors", visitors.Routes())
	r.Mount("/reports", handlers.NewReportHandler(d.Reports, requireAuth).Routes())
	r.Mount("/auth", handlers.NewAuthHandler(d.Auth, requireAuth, otpLimit).Routes())

	if d.PhotoDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", photo.Handler(d.PhotoDir)))
	}
	if d.MetricsHandler != nil {
		r.Handle("/metrics", d.MetricsHandler)
	}
	return r
}
