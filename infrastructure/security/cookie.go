package security

import (
	"net/http"
	"strings"
	"time"
)

const (
	sessionCookie = "letschat_session"
	// SessionHeader lets non-browser clients such as the listen command
	// present the session token without a cookie jar.
	SessionHeader = "X-Session-Token"

	sessionLifetime = 30 * 24 * time.Hour // 30 days
)

type cookieConfig struct {
	name     string
	value    string
	path     string
	httpOnly bool
	maxAge   int
}

func setSecureCookie(w http.ResponseWriter, cfg cookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.name,
		Value:    cfg.value,
		Path:     cfg.path,
		HttpOnly: cfg.httpOnly,
		MaxAge:   cfg.maxAge,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
	})
}

// GetSessionToken reads the session token from the request.
func GetSessionToken(r *http.Request) string {
	// Header first (CLI and SDK clients)
	if token := strings.TrimSpace(r.Header.Get(SessionHeader)); token != "" {
		return token
	}

	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func SetSessionToken(w http.ResponseWriter, token string) {
	setSecureCookie(w, cookieConfig{
		name:     sessionCookie,
		value:    token,
		path:     "/",
		httpOnly: true,
		maxAge:   int(sessionLifetime.Seconds()),
	})
}

func ClearSessionToken(w http.ResponseWriter) {
	setSecureCookie(w, cookieConfig{
		name:     sessionCookie,
		value:    "",
		path:     "/",
		httpOnly: true,
		maxAge:   -1,
	})
}
