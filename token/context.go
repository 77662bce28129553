package token

import "context"

type inboundContextKey struct{}

// WithInbound records a credential supplied with the request itself (service to
// service calls) as the active token for the rest of the request. It is never persisted.
func WithInbound(ctx context.Context, t OAuth2Token) context.Context {
	return context.WithValue(ctx, inboundContextKey{}, t)
}

// InboundFromContext returns the adopted request credential, if any.
func InboundFromContext(ctx context.Context) (OAuth2Token, bool) {
	t, ok := ctx.Value(inboundContextKey{}).(OAuth2Token)
	return t, ok
}
