package oidcclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
	"golang.org/x/oauth2"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Settings are the provider parameters passed through from configuration.
type Settings struct {
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// TokenResult is the outcome of an authorization-code exchange.
type TokenResult struct {
	token.Fields
	IDToken string
}

// Client is the OAuth2/OIDC protocol client for a single provider. It performs code
// exchange, ID token verification and refresh, and never stores tokens itself: when it
// needs the current token it asks the registered TokenHooks.
type Client struct {
	name     string
	provider *oidc.Provider
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier

	hooksLock sync.RWMutex
	hooks     TokenHooks
}

// New discovers the provider metadata from settings.IssuerURL.
func New(ctx context.Context, settings Settings) (*Client, error) {
	provider, err := oidc.NewProvider(ctx, settings.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	return &Client{
		name:     settings.Name,
		provider: provider,
		config: oauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       settings.Scopes,
		},
		verifier: provider.Verifier(&oidc.Config{
			ClientID: settings.ClientID,
			Now:      func() time.Time { return NowTimeFunc() },
		}),
	}, nil
}

// Name is the provider name tokens are stored under.
func (c *Client) Name() string {
	return c.name
}

// AuthorizeURL builds the provider authorization URL with nonce and PKCE S256 challenge.
func (c *Client) AuthorizeURL(callbackURL, state, nonce, verifier string) string {
	cfg := c.config
	cfg.RedirectURL = callbackURL
	return cfg.AuthCodeURL(state, oidc.Nonce(nonce), oauth2.S256ChallengeOption(verifier))
}

// AuthorizeAccessToken exchanges an authorization code for tokens.
func (c *Client) AuthorizeAccessToken(ctx context.Context, code, callbackURL, verifier string) (*TokenResult, error) {
	cfg := c.config
	cfg.RedirectURL = callbackURL

	tok, err := cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %w", autherrors.ErrProviderProtocol, err)
	}

	rawIDToken, _ := tok.Extra("id_token").(string)
	return &TokenResult{Fields: fieldsFromOAuth2(tok), IDToken: rawIDToken}, nil
}

// ParseIdentityAssertion verifies the ID token signature, audience and expiry against
// the provider keys, checks the nonce and returns the asserted claims.
func (c *Client) ParseIdentityAssertion(ctx context.Context, result *TokenResult, nonce string) (map[string]any, error) {
	if result == nil || result.IDToken == "" {
		return nil, fmt.Errorf("%w: no ID token in response", autherrors.ErrProviderProtocol)
	}

	idToken, err := c.verifier.Verify(ctx, result.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: ID token verification failed: %w", autherrors.ErrProviderProtocol, err)
	}
	if idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: invalid nonce", autherrors.ErrProviderProtocol)
	}

	claims := map[string]any{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to extract claims: %w", autherrors.ErrProviderProtocol, err)
	}
	return claims, nil
}

// RefreshAccessToken redeems a refresh token. When the provider does not rotate the
// refresh token the one sent is returned.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Fields, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", autherrors.ErrRefreshFailure)
	}

	tok, err := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", autherrors.ErrRefreshFailure, err)
	}

	fields := fieldsFromOAuth2(tok)
	if fields.RefreshToken == "" {
		fields.RefreshToken = refreshToken
	}
	return &fields, nil
}

func fieldsFromOAuth2(tok *oauth2.Token) token.Fields {
	fields := token.Fields{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		fields.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		fields.ExpiresAt = tok.Expiry.Unix()
	}
	return fields.WithExpiry(NowTimeFunc())
}

func toOAuth2(t token.Fields) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresIn:    t.ExpiresIn,
	}
	if t.ExpiresAt > 0 {
		tok.Expiry = time.Unix(t.ExpiresAt, 0)
	}
	return tok
}
