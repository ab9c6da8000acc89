package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// SessionHeader carries the shopper's session identifier.
const SessionHeader = "X-Session-ID"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// SessionID resolves the session identifier from X-Session-ID, minting a new
// one when absent. The id is echoed back in the response header.
func SessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			id = uuid.NewString()
		} else if !sessionIDPattern.MatchString(id) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_SESSION", Message: "malformed " + SessionHeader},
			})
			return
		}

		w.Header().Set(SessionHeader, id)
		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		ctx = logger.WithSessionID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionIDFromContext returns the id set by SessionID.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionIDKey).(string); ok {
		return id
	}
	return ""
}
