package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/luciosalva/control-presupuesto/internal/platform/httpx"
)

type contextKey struct{}

// ContextWithPrincipal attaches the principal to the request context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
}

// Authenticate rejects requests without a valid bearer token and stores the
// principal in the context for downstream policy checks.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Error(w, http.StatusUnauthorized, httpx.KindUnauthorized, "bearer token required", "")
			return
		}

		p, err := m.Verifier.Verify(r.Context(), token)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("token rejected", slog.String("path", r.URL.Path))
			}
			httpx.Error(w, http.StatusUnauthorized, httpx.KindUnauthorized, "invalid token", "")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), p)))
	})
}

// Require ensures the current principal has one of the given roles.
func (m Middleware) Require(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Error(w, http.StatusUnauthorized, httpx.KindUnauthorized, "bearer token required", "")
				return
			}
			if !p.Allows(roles...) {
				if m.Logger != nil {
					m.Logger.Warn("role denied",
						slog.String("path", r.URL.Path),
						slog.String("rol", string(p.Role)))
				}
				httpx.Error(w, http.StatusForbidden, httpx.KindForbidden, "insufficient role", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
