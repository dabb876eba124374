// internal/httpapi/auth.go
package httpapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// adminAuth gates maintenance routes on the configured admin token. The
// token rides in Authorization as a bearer value and is compared in
// constant time. An unconfigured token disables the routes entirely.
func (a *App) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.adminToken == "" {
			http.Error(w, "maintenance disabled: admin token not configured", http.StatusInternalServerError)
			return
		}
		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if subtle.ConstantTimeCompare([]byte(tok), []byte(a.adminToken)) != 1 {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
