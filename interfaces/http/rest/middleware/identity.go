package middleware

import (
	"net/http"
	"strings"

	"citegraph/pkg/common"
)

// Identity copies the caller's opaque user id from the X-User-ID header or
// the user_id query parameter into the request context. The id is trusted
// as given; anonymous requests pass through untouched.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if userID == "" {
			userID = strings.TrimSpace(r.URL.Query().Get("user_id"))
		}
		if userID != "" {
			r = r.WithContext(common.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
