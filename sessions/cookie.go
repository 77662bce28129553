package sessions

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/rs/zerolog/log"
)

// CookieName is the browser cookie holding the opaque session id.
const CookieName = "session_id"

// Manager binds Identity records in a Repo to the browser through the session cookie.
type Manager struct {
	repo   Repo
	maxAge time.Duration
}

func NewManager(repo Repo, maxAge time.Duration) *Manager {
	return &Manager{repo: repo, maxAge: maxAge}
}

// Start creates a new session for identity and sets the session cookie. Any previous
// session carried by the request is dropped so ids are never reused across logins.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, identity Identity) error {
	if c, err := r.Cookie(CookieName); err == nil {
		_ = m.repo.Delete(c.Value)
	}

	now := NowTimeFunc()
	identity.CreatedAt = now
	if m.maxAge > 0 {
		identity.ExpiresAt = now.Add(m.maxAge)
	}

	sessionID := uuid.NewString()
	if err := m.repo.Upsert(sessionID, identity); err != nil {
		return autherrors.Wrapf(err, "[sessions Start]")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.maxAge.Seconds()),
	})
	return nil
}

// Identity returns the identity of the session carried by the request, if any.
func (m *Manager) Identity(r *http.Request) (Identity, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Identity{}, false
	}
	identity, err := m.repo.Get(c.Value)
	if err != nil {
		if !autherrors.Is(err, autherrors.ErrSessionNotFound) && !autherrors.Is(err, autherrors.ErrSessionExpired) {
			log.Error().Err(err).Msg("session lookup failed")
		}
		return Identity{}, false
	}
	return identity, true
}

// End removes the session carried by the request and expires the cookie. It returns
// the identity the session held, if there was one.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, ok := m.Identity(r)
	if c, err := r.Cookie(CookieName); err == nil {
		_ = m.repo.Delete(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return identity, ok
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}
