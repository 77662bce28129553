package gate

import (
	"context"

	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
)

// Source says where the active credential of a request came from.
type Source string

const (
	SourceSession Source = "session"
	SourceInbound Source = "inbound"
)

// AuthContext is the request-scoped view of who is calling and with which token.
type AuthContext struct {
	Provider string
	// Identity is nil for service calls that carry their own token and no session.
	Identity *sessions.Identity
	Token    token.OAuth2Token
	Source   Source
}

type authContextKey struct{}

func WithAuthContext(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext returns the AuthContext the gate attached to an allowed request.
func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(authContextKey{}).(AuthContext)
	return ac, ok
}
