package httputil

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	// refreshCookiePath scopes the refresh cookie to the endpoints that
	// consume it.
	refreshCookiePath = "/auth"
)

// SessionCookies writes and clears the HttpOnly session cookies.
type SessionCookies struct {
	Secure     bool
	RefreshTTL time.Duration
}

// Set writes both cookies. The access cookie lives as long as the token.
func (c SessionCookies) Set(w http.ResponseWriter, accessToken, refreshToken string, accessTTL time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    accessToken,
		Path:     "/",
		MaxAge:   int(accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	if refreshToken == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    refreshToken,
		Path:     refreshCookiePath,
		MaxAge:   int(c.RefreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear expires both cookies.
func (c SessionCookies) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		path := "/"
		if name == RefreshTokenCookie {
			path = refreshCookiePath
		}
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   c.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
