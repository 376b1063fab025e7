package interceptors

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"alumni-tracker/internal/platform/httputil"
	"alumni-tracker/internal/session/domain"
)

// PrincipalResolver turns a bearer token into the principal it stands for.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}

// Authenticate resolves an "Authorization: Bearer" header and stores the principal in the
// request context. Requests without the header pass through anonymously; handlers that need
// a principal reject them. A header that does not resolve is rejected with 401 here.
func Authenticate(resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httputil.WriteError(w, &httputil.APIError{Status: http.StatusUnauthorized, Code: httputil.CodeUnauthenticated, Description: "bearer token required"})
				return
			}
			p, err := resolver.Resolve(ctx, strings.TrimSpace(token))
			if err != nil {
				if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrInactiveAccount) {
					logger.WarnContext(ctx, "unauthorized access", "error", err, "request_id", middleware.GetReqID(ctx))
					httputil.WriteError(w, &httputil.APIError{Status: http.StatusUnauthorized, Code: httputil.CodeUnauthenticated, Description: "invalid or expired token"})
					return
				}
				logger.ErrorContext(ctx, "resolve principal failed", "error", err, "request_id", middleware.GetReqID(ctx))
				httputil.WriteError(w, httputil.Internal())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, p.AccountID, p.Role)))
		})
	}
}
