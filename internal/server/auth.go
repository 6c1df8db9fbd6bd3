package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAdmin checks the bearer token against the configured admin token.
// With no token configured the admin surface is closed.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminToken == "" {
			s.respondError(w, http.StatusForbidden, "admin API disabled: no admin token configured")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.AdminToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="sofim"`)
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
