package http

import (
	"net/http"
	"strings"

	"github.com/aipowereddevteam/auth2026/pkg/httputil"
)

// ContentTypeJSON rejects request bodies that are not application/json.
// Bodyless POSTs (logout and refresh with a cookie) pass through.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
