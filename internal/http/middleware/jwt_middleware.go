package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/diagnosis/visitor-desk/internal/domain"
	"github.com/diagnosis/visitor-desk/internal/http/response"
	"github.com/diagnosis/visitor-desk/pkg/auth"
	"github.com/diagnosis/visitor-desk/pkg/logger"
)

type ctxKey string

const ctxActor ctxKey = "actor"

// RequireJWT rejects requests without a valid bearer token.
func RequireJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearer(r)
			if !ok {
				response.WriteError(w, http.StatusUnauthorized, "missing or invalid authorization header", response.CodeUnauthorized)
				return
			}
			claims, err := auth.Parse(raw, secret)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid authorization token", response.CodeInvalidToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), claims)))
		})
	}
}

// OptionalJWT attaches the actor when a valid token is present and otherwise
// lets the request through anonymously. A malformed token is still rejected.
func OptionalJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			RequireJWT(secret)(next).ServeHTTP(w, r)
		})
	}
}

// RequireMethod admits only actors who signed in with one of methods. It must
// run after RequireJWT.
func RequireMethod(methods ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFrom(r.Context())
			if actor == nil {
				response.Unauthorized(w, "not authenticated")
				return
			}
			for _, m := range methods {
				if actor.Method == m {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Forbidden(w, "this action requires a password sign-in")
		})
	}
}

// ActorFrom returns the authenticated caller, or nil for anonymous requests.
func ActorFrom(ctx context.Context) *domain.Actor {
	a, _ := ctx.Value(ctxActor).(*domain.Actor)
	return a
}

func withActor(ctx context.Context, claims *auth.Claims) context.Context {
	actor := &domain.Actor{
		Username: claims.Username,
		Phone:    claims.Phone,
		Method:   claims.Method,
	}
	if claims.Sub != 0 {
		id := claims.Sub
		actor.UserID = &id
	}
	ctx = context.WithValue(ctx, ctxActor, actor)
	return context.WithValue(ctx, logger.ActorKey, actor.Label())
}

func bearer(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	return raw, raw != ""
}
