package api

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKeyHeader carries the admin key for destructive routes. A bearer
// Authorization header is accepted too.
const AdminKeyHeader = "X-Admin-Key"

// HashAdminKey returns the bcrypt hash to configure for key.
func HashAdminKey(key string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.adminHash) == 0 {
			writeError(w, http.StatusForbidden, "admin operations are disabled")
			return
		}
		key := adminKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "admin key required")
			return
		}
		if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(key)); err != nil {
			s.logger.Warn("admin key rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeError(w, http.StatusForbidden, "invalid admin key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func adminKey(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(AdminKeyHeader)); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
