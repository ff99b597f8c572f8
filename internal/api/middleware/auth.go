package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gashop/shop-ledger/internal/api/problem"
	"github.com/gashop/shop-ledger/internal/auth"
)

type contextKey string

const (
	accountContextKey  contextKey = "account_id"
	usernameContextKey contextKey = "username"
	roleContextKey     contextKey = "user_role"
	traceContextKey    contextKey = "trace_id"
)

// Auth validates the bearer token and checks the session is still live, then
// injects the caller's identity into the request context.
func Auth(issuer *auth.TokenIssuer, sessions *auth.SessionStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/authorization-header-required"), "", "Authorization header required")
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token-format"), "", "Invalid token format")
				return
			}

			claims, err := issuer.Verify(tokenString)
			if err != nil {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/invalid-token"), "", "Invalid token")
				return
			}

			active, err := sessions.Active(r.Context(), claims.ID)
			if err != nil {
				logger.Error("session lookup failed", zap.Error(err))
				problem.Write(w, r, http.StatusInternalServerError, problem.Type("auth/session-unavailable"), "", "session store unavailable")
				return
			}
			if !active {
				problem.Write(w, r, http.StatusUnauthorized, problem.Type("auth/session-revoked"), "", "session expired or revoked")
				return
			}

			ctx := context.WithValue(r.Context(), accountContextKey, claims.AccountID)
			ctx = context.WithValue(ctx, usernameContextKey, claims.Username)
			ctx = context.WithValue(ctx, roleContextKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole ensures the authenticated caller has the required role.
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role != requiredRole {
				problem.Write(w, r, http.StatusForbidden, problem.Type("auth/insufficient-permissions"), "", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountIDFromContext returns the authenticated account id, uuid.Nil for the
// admin.
func AccountIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(accountContextKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// UsernameFromContext returns the authenticated username.
func UsernameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(usernameContextKey).(string); ok {
		return v
	}
	return ""
}

// RoleFromContext returns the role of the authenticated caller.
func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(roleContextKey).(string); ok {
		return v
	}
	return ""
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceContextKey).(string); ok {
		return v
	}
	return ""
}
