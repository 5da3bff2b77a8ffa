// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"gradebook/internal/auth"
)

type contextKey struct{ name string }

var claimsKey = contextKey{"claims"}

// denyJSON writes a small JSON error body; the web package owns the richer
// error mapping, auth denials only need a stable code.
func denyJSON(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q,"code":%q}`+"\n", message, code)
}

// ClaimsFromContext returns the verified token claims for the request, if
// the Authenticator ran.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

// Authenticator returns middleware that verifies the Authorization bearer
// token and stores its claims in the request context. Requests without a
// valid token are rejected with 401.
func Authenticator(issuer *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				slog.Warn("auth: missing bearer token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				denyJSON(w, http.StatusUnauthorized, "missing bearer token", "AUTH_MISSING_TOKEN")
				return
			}

			claims, err := issuer.Verify(token)
			if err != nil {
				slog.Warn("auth: invalid token",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
					"error", err.Error(),
				)
				denyJSON(w, http.StatusUnauthorized, "invalid token", "AUTH_INVALID_TOKEN")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that rejects authenticated requests whose
// token carries a different role. It must run after Authenticator.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				denyJSON(w, http.StatusUnauthorized, "not authenticated", "AUTH_MISSING_TOKEN")
				return
			}
			if claims.Role != role {
				slog.Warn("auth: role denied",
					"path", r.URL.Path,
					"required", role,
					"actual", claims.Role,
					"user_id", claims.UserID,
				)
				denyJSON(w, http.StatusForbidden, "forbidden", "AUTH_FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
