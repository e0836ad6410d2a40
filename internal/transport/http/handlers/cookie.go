package handlers

import (
	"net/http"
	"strings"
	"time"
)

// CookieOptions - параметры cookie с refresh-токеном.
type CookieOptions struct {
	Name     string
	Path     string
	Secure   bool
	SameSite http.SameSite
	// Now задаёт часы для Max-Age; по умолчанию time.Now.
	Now func() time.Time
}

// ParseSameSite переводит строку конфига в http.SameSite (по умолчанию Strict).
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

// refreshCookie собирает HttpOnly-cookie, живущую ровно до истечения refresh-токена.
func (o CookieOptions) refreshCookie(token string, expiresAt time.Time) *http.Cookie {
	now := time.Now
	if o.Now != nil {
		now = o.Now
	}

	maxAge := int(expiresAt.Sub(now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     o.Name,
		Value:    token,
		Path:     o.Path,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: o.SameSite,
	}
}

// readRefresh достаёт refresh-токен из cookie запроса.
func (o CookieOptions) readRefresh(r *http.Request) (string, bool) {
	c, err := r.Cookie(o.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}
