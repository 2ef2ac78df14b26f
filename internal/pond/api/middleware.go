package api

import (
	"net/http"
	"strings"

	"github.com/lcroft/pond/internal/pond/session"
)

// authed verifies the caller's session token, upserts the local user
// row, and attaches the identity to the request context. Tokens arrive
// either in the session cookie (browser clients) or as a bearer header
// (the drawing tool's export call and the simulator).
func (s *Server) authed(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := session.Verify(requestToken(r), s.sessionCfg)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.svc.EnsureUser(r.Context(), identity); err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(session.WithIdentity(r.Context(), identity)))
	})
}

func requestToken(r *http.Request) string {
	if cookie, err := r.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
