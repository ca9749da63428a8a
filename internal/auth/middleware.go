package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/freeeve/roundscope/internal/logger"
)

type contextKey string

const (
	clientIDKey contextKey = "client_id"
	scopeKey    contextKey = "scope"
)

// Middleware returns an HTTP middleware that validates JWT tokens.
// Extracts the token from the Authorization header (Bearer scheme)
// and stores the client ID and map scope in the request context.
func Middleware(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization format"}`, http.StatusUnauthorized)
				return
			}

			claims, err := jwtMgr.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClient(r.Context(), claims.Client())))
		})
	}
}

// WithClient returns a context carrying the authenticated client, also
// tagging the request logger with its ID.
func WithClient(ctx context.Context, c Client) context.Context {
	ctx = context.WithValue(ctx, clientIDKey, c.ID)
	ctx = context.WithValue(ctx, scopeKey, c.Maps)
	return logger.WithClientID(ctx, c.ID)
}

// ClientIDFromContext extracts the authenticated API client ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// ScopeFromContext returns the maps the authenticated client may analyze.
func ScopeFromContext(ctx context.Context) Scope {
	s, _ := ctx.Value(scopeKey).(Scope)
	return s
}

// MapAllowed reports whether the authenticated client may analyze mapName.
func MapAllowed(ctx context.Context, mapName string) bool {
	return ScopeFromContext(ctx).Allows(mapName)
}
