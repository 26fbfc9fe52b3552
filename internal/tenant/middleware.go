package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/SultanSulimanSerj/portal/internal/domain"
	"github.com/SultanSulimanSerj/portal/pkg/httputil"
	"github.com/SultanSulimanSerj/portal/pkg/logger"
	"github.com/SultanSulimanSerj/portal/pkg/middleware"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (domain.AuthIdentity, error)
}

type scopeKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the boundary stored by RequireTenant.
func ScopeFromContext(ctx context.Context) (Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// RequireAuth verifies the bearer token and stores the identity in the request
// context.
func RequireAuth(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := middleware.BearerToken(r)
			if !ok {
				httputil.WriteError(w, r, domain.HTTPError(domain.ErrInvalidToken), log)
				return
			}

			identity, err := v.VerifyAccessToken(token)
			if err != nil {
				httputil.WriteError(w, r, domain.HTTPError(err), log)
				return
			}

			ctx := domain.WithIdentity(r.Context(), identity)
			ctx = logger.WithUserID(ctx, identity.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errHandlerFailed = errors.New("handler responded with an error status")

// RequireTenant runs the rest of the chain inside a tenant boundary for the
// caller's company. Responses with a status of 400 or above roll the boundary
// back.
func RequireTenant(g *Guard, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := domain.IdentityFromContext(r.Context())
			if !ok {
				httputil.WriteError(w, r, domain.HTTPError(domain.ErrInvalidToken), log)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			err := g.Run(r.Context(), identity, func(ctx context.Context, s Scope) error {
				next.ServeHTTP(rec, r.WithContext(WithScope(ctx, s)))
				if rec.status >= http.StatusBadRequest {
					return errHandlerFailed
				}
				return nil
			})
			if err == nil || errors.Is(err, errHandlerFailed) {
				return
			}
			if rec.wrote {
				logger.FromContext(r.Context()).ErrorContext(r.Context(), "tenant transaction failed after response",
					slog.String("error", err.Error()),
				)
				return
			}
			httputil.WriteError(w, r, domain.HTTPError(err), log)
		})
	}
}

// RequireAnyRole rejects callers that hold none of allowed.
func RequireAnyRole(log *slog.Logger, allowed ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := domain.IdentityFromContext(r.Context())
			if err := RequireRole(identity, allowed...); err != nil {
				httputil.WriteError(w, r, domain.HTTPError(err), log)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wrote {
		r.wrote = true
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
