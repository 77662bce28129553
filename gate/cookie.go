package gate

import (
	"net/http"
	"strings"
	"time"
)

// FailedAuthenticationCookie remembers the URL a browser was turned away from so the
// login callback can send it back there.
const FailedAuthenticationCookie = "failed_authentication_url"

func SetFailedAuthenticationURL(w http.ResponseWriter, r *http.Request, target string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     FailedAuthenticationCookie,
		Value:    target,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// PopFailedAuthenticationURL returns the remembered URL and clears the cookie. Only
// local paths are returned.
func PopFailedAuthenticationURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie(FailedAuthenticationCookie)
	if err != nil {
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     FailedAuthenticationCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	if !isLocalPath(c.Value) {
		return "", false
	}
	return c.Value, true
}

func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.HasPrefix(target, "/\\")
}
