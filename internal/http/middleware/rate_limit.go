package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/visitor-desk/internal/http/response"
	"github.com/diagnosis/visitor-desk/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RateLimitConfig defines rate limiting parameters
type RateLimitConfig struct {
	Requests int                            // Max requests per window
	Window   time.Duration                  // Time window duration
	Prefix   string                         // Namespaces keys per route
	KeyFunc  func(r *http.Request) []string // Function to generate rate limit keys
}

// Counter increments the hit count for key inside the current window.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
}

// RateLimiter provides rate limiting functionality
type RateLimiter struct {
	counter Counter
	config  RateLimitConfig
}

func NewRateLimiter(counter Counter, config RateLimitConfig) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = ClientIPKeyFunc
	}
	return &RateLimiter{counter: counter, config: config}
}

// Middleware returns the rate limiting middleware
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, key := range rl.config.KeyFunc(r) {
				count, err := rl.counter.Hit(r.Context(), rl.config.Prefix+key, rl.config.Window)
				if err != nil {
					// fail open
					logger.WarnContext(r.Context(), "Rate limit check failed", "error", err)
					continue
				}
				if count > rl.config.Requests {
					w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rl.config.Window.Seconds())))
					response.RateLimit(w, "Too many requests. Try again later.")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PostgresCounter keeps fixed windows in the rate_limits table.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

func (c *PostgresCounter) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	hashedKey := fmt.Sprintf("%x", sha256.Sum256([]byte(key)))
	now := time.Now()
	windowStart := now.Add(-window)

	// Use PostgreSQL UPSERT to atomically check and update rate limit
	query := `
		INSERT INTO rate_limits (rl_key, count, window_start, expires_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (rl_key) DO UPDATE SET
			count = CASE
				WHEN rate_limits.window_start < $4 THEN 1
				ELSE rate_limits.count + 1
			END,
			window_start = CASE
				WHEN rate_limits.window_start < $4 THEN $2
				ELSE rate_limits.window_start
			END,
			expires_at = $3
		RETURNING count`

	var count int
	err := c.pool.QueryRow(ctx, query, hashedKey, now, now.Add(window), windowStart).Scan(&count)
	return count, err
}

// ClientIPKeyFunc rate limits by client address.
func ClientIPKeyFunc(r *http.Request) []string {
	if ip := getClientIP(r); ip != "" {
		return []string{"ip:" + ip}
	}
	return nil
}

// getClientIP extracts the real client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
