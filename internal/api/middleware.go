// Package api implements the Vellum REST API using chi.
package api

import (
	"net/http"
	"strings"
)

// AuthMiddleware guards the API, the session endpoints, and the SSE
// stream with a single Bearer token. With enabled false every request
// passes through, the default for a local preview setup; with enabled
// true requests need "Authorization: Bearer <token>".
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
