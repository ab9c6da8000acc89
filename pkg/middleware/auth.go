package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

type contextKeyType string

const (
	accountIDKey contextKeyType = "account_id"
	sessionIDKey contextKeyType = "session_id"
)

// Claims is what a validated bearer token tells the storefront about the shopper.
type Claims struct {
	AccountID string
	Email     string
}

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// OptionalAuth injects the account id when a valid bearer token is present.
// Requests without an Authorization header pass through anonymously; a
// malformed or invalid token is rejected.
func OptionalAuth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				writeAuthError(w, "invalid authorization header format")
				return
			}

			claims, err := validate(token)
			if err != nil {
				writeAuthError(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, claims.AccountID)
			ctx = logger.WithUserID(ctx, claims.AccountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccount rejects requests that OptionalAuth did not authenticate.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if AccountIDFromContext(r.Context()) == "" {
			writeAuthError(w, "missing authorization header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccountIDFromContext extracts the authenticated account id.
func AccountIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(accountIDKey).(string); ok {
		return id
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, message string) {
	httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
		Error: &httputil.ErrorResponse{Code: "UNAUTHORIZED", Message: message},
	})
}
