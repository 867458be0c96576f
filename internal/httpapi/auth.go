package httpapi

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// authorizeAdmin compares the request's bearer token against the configured
// bcrypt hash. With no hash configured the admin surface is disabled.
func (h *Handler) authorizeAdmin(r *http.Request) bool {
	if h.adminHash == "" {
		return false
	}
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.adminHash), []byte(token)) == nil
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
