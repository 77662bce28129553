package authflow

import "time"

// State is what the login handler remembers between redirecting to the provider and
// the provider calling back, keyed by the OAuth state parameter.
type State struct {
	Nonce        string
	CodeVerifier string
	CreatedAt    time.Time
}

// Expired reports whether the login round trip took longer than timeout.
func (s State) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.CreatedAt) > timeout
}

type Repo interface {
	Upsert(state string, authState *State) error
	Get(state string) (*State, error)
	Delete(state string) error
}
