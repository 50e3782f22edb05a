package middleware

import (
	"context"
	"net/http"
)

type contextKey string

// UserIDKey is the request context key holding the caller's user ID.
const UserIDKey contextKey = "userID"

// UserHeader carries the caller identity. Authentication proper lives
// at the gateway; the service trusts this header.
const UserHeader = "X-User-Id"

// Auth extracts the caller identity from the request header and rejects
// requests without one.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(UserHeader)
		if userID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserID returns the authenticated user ID from the context, empty if
// the request skipped the Auth middleware.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
