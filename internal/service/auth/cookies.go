package auth

import (
	"net/http"
	"time"

	"github.com/nkiryanov/vidtube/internal/models"
)

func (s *AuthService) cookie(name string, value string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

// Set auth tokens (access, refresh) to response cookies
func (s *AuthService) SetTokenPair(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access.Value, pair.Access.ExpiresAt))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh.Value, pair.Refresh.ExpiresAt))
}

// Expire both auth cookies on client
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{s.accessCookieName, s.refreshCookieName} {
		c := s.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// Get refresh token from cookie, fallback is used if cookie is not set
func (s *AuthService) GetRefreshString(r *http.Request, fallback string) string {
	if c, err := r.Cookie(s.refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return fallback
}
