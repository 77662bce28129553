package gate

import (
	"net/http"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/rs/zerolog/log"
)

// RedirectUnauthorized turns a 401 written by a protected handler into a redirect to
// logoutURL, so a credential that dies mid-request sends the browser through login.
func RedirectUnauthorized(logoutURL string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			next(&unauthorizedWriter{ResponseWriter: w, r: r, logoutURL: logoutURL}, r)
		}
	}
}

type unauthorizedWriter struct {
	http.ResponseWriter
	r           *http.Request
	logoutURL   string
	wroteHeader bool
	intercepted bool
}

func (w *unauthorizedWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code != http.StatusUnauthorized {
		w.ResponseWriter.WriteHeader(code)
		return
	}

	w.intercepted = true
	h := w.ResponseWriter.Header()
	h.Del("Content-Length")
	h.Del("WWW-Authenticate")
	log.Debug().Str("path", w.r.URL.Path).Msg("handler answered 401, redirecting to logout")
	http.Redirect(w.ResponseWriter, w.r, w.logoutURL, http.StatusFound)
}

func (w *unauthorizedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.intercepted {
		return len(b), nil
	}
	return w.ResponseWriter.Write(b)
}

func (w *unauthorizedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// HandlerFunc is a handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to net/http. Authentication failures redirect to logoutURL, a
// misconfigured identity field answers 500 with the diagnostic, and anything else is
// logged and answered with a bare 500.
func Handle(logoutURL string, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		var misconfigured *autherrors.MisconfiguredIdentityFieldError
		switch {
		case autherrors.As(err, &misconfigured):
			log.Error().Err(err).Str("field", misconfigured.Field).Strs("available", misconfigured.Available).Msg("identity field misconfigured")
			http.Error(w, misconfigured.Error(), http.StatusInternalServerError)

		case autherrors.Is(err, autherrors.ErrAuthenticationRequired),
			autherrors.Is(err, autherrors.ErrTokenExpiredInbound),
			autherrors.Is(err, autherrors.ErrSessionNotFound),
			autherrors.Is(err, autherrors.ErrSessionExpired):
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication required")
			http.Redirect(w, r, logoutURL, http.StatusFound)

		case autherrors.Is(err, autherrors.ErrInvalidState):
			log.Info().Err(err).Str("path", r.URL.Path).Msg("bad login state")
			http.Error(w, "invalid or expired login state", http.StatusBadRequest)

		default:
			log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}
