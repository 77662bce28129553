package sessions

import (
	"context"
	"time"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Identity is the authenticated-user marker kept for a browser session. A present
// Identity implies a stored token should exist for (provider, UserID).
type Identity struct {
	// UserID is the value of the configured USER_ID_FIELD claim.
	UserID string
	// Claims are the provider-asserted claims from the identity token.
	Claims map[string]any

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the identity is past its expiry. A zero ExpiresAt never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

type identityContextKey struct{}

// WithIdentity stores the session identity on the context for downstream consumers.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext retrieves the session identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	return identity, ok
}
