package auth

import (
	"encoding/json"
	"net/http"
)

// RequireAPIKey wraps next so that state-changing requests (anything but
// GET, HEAD and OPTIONS) must carry key in the named header. Reads are
// never gated. When mode != "apikey" or key == "", next is returned as is.
func RequireAPIKey(mode, header, key string, next http.Handler) http.Handler {
	if !Enabled(mode, key) {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !Valid(r.Header.Get(header), key) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid api key"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r)
	})
}
