package sessions

import (
	"fmt"
	"maps"
	"sync"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory implementation of Repo
type InMemoryRepo struct {
	mu       sync.RWMutex
	sessions map[string]Identity
}

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		sessions: make(map[string]Identity),
	}
}

// Upsert creates or updates a session
func (r *InMemoryRepo) Upsert(sessionID string, identity Identity) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if identity.UserID == "" {
		return fmt.Errorf("identity user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	identity.Claims = maps.Clone(identity.Claims)
	r.sessions[sessionID] = identity
	return nil
}

// Get retrieves a session. Expired sessions are removed and reported as ErrSessionExpired.
func (r *InMemoryRepo) Get(sessionID string) (Identity, error) {
	if sessionID == "" {
		return Identity{}, autherrors.ErrSessionNotFound
	}

	r.mu.RLock()
	identity, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return Identity{}, autherrors.ErrSessionNotFound
	}

	if identity.Expired(NowTimeFunc()) {
		_ = r.Delete(sessionID)
		return Identity{}, autherrors.ErrSessionExpired
	}

	identity.Claims = maps.Clone(identity.Claims)
	return identity, nil
}

// Delete removes a session
func (r *InMemoryRepo) Delete(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, sessionID)
	return nil
}
