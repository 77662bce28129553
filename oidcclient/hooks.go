package oidcclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/go-oidc-gate/token"
	"golang.org/x/oauth2"
)

// TokenHooks is the capability the client calls back into whenever it needs the
// current token for an outbound call, or has decided a token must be renewed.
type TokenHooks interface {
	Fetch(ctx context.Context, provider string) (*token.OAuth2Token, error)
	Update(ctx context.Context, provider string, current token.OAuth2Token) (*token.OAuth2Token, error)
}

var errNoHooks = errors.New("oidcclient: no token hooks registered")

// Register installs the token hooks. It is called once at start up.
func (c *Client) Register(hooks TokenHooks) {
	c.hooksLock.Lock()
	defer c.hooksLock.Unlock()
	c.hooks = hooks
}

func (c *Client) registeredHooks() TokenHooks {
	c.hooksLock.RLock()
	defer c.hooksLock.RUnlock()
	return c.hooks
}

// HTTPClient returns a client authorising outbound requests with the token of the
// identity carried by ctx. ctx must be the request context prepared by the gate.
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	return oauth2.NewClient(ctx, c.TokenSource(ctx))
}

// TokenSource adapts the registered hooks to oauth2.TokenSource.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &hookTokenSource{ctx: ctx, client: c}
}

type hookTokenSource struct {
	ctx    context.Context
	client *Client
}

// Token fetches through the hooks. A token that oauth2 would consider about to expire
// is renewed through Update when it carries a refresh token.
func (s *hookTokenSource) Token() (*oauth2.Token, error) {
	hooks := s.client.registeredHooks()
	if hooks == nil {
		return nil, errNoHooks
	}

	current, err := hooks.Fetch(s.ctx, s.client.name)
	if err != nil {
		return nil, err
	}

	if !toOAuth2(current.Fields).Valid() && current.HasRefreshToken() {
		current, err = hooks.Update(s.ctx, s.client.name, *current)
		if err != nil {
			return nil, err
		}
	}
	return toOAuth2(current.Fields), nil
}
