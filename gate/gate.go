// Package gate decides, for every incoming request, whether it may reach its handler:
// whitelisted endpoints pass untouched, requests carrying their own token are judged
// on that token's expiry, and everything else needs a session whose stored token is
// fresh or can be refreshed.
package gate

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-oidc-gate/internal/config"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/rs/zerolog/log"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// TokenFetcher returns the usable token for the identity carried by ctx.
type TokenFetcher interface {
	Fetch(ctx context.Context, provider string) (*token.OAuth2Token, error)
}

// IdentityLoader resolves the session identity of a request.
type IdentityLoader interface {
	Identity(r *http.Request) (sessions.Identity, bool)
}

// RouteNamer returns the registered name of the route a request resolves to, or "".
type RouteNamer func(r *http.Request) string

type Options struct {
	Provider string
	// Whitelist holds endpoint names and paths (without surrounding slashes) that skip authentication.
	Whitelist  config.Whitelist
	RouteNamer RouteNamer
	// LogoutURL is where unauthenticated browsers are sent.
	LogoutURL string
	// FailedAuthCookieMaxAge bounds how long the remembered URL survives the login round trip.
	FailedAuthCookieMaxAge time.Duration
}

type Gate struct {
	opts       Options
	tokens     TokenFetcher
	identities IdentityLoader
}

func New(opts Options, tokens TokenFetcher, identities IdentityLoader) *Gate {
	if opts.Whitelist == nil {
		opts.Whitelist = config.NewWhitelist()
	}
	return &Gate{opts: opts, tokens: tokens, identities: identities}
}

// Whitelisted reports whether the request targets an endpoint that skips authentication.
// Both the registered route name and the path with its slashes stripped are matched.
func (g *Gate) Whitelisted(r *http.Request) bool {
	if g.opts.Whitelist.Contains(strings.Trim(r.URL.Path, "/")) {
		return true
	}
	if g.opts.RouteNamer != nil {
		if name := g.opts.RouteNamer(r); name != "" && g.opts.Whitelist.Contains(name) {
			return true
		}
	}
	return false
}

// Decide runs the decision machine for one request without writing a response.
func (g *Gate) Decide(r *http.Request) Decision {
	if g.Whitelisted(r) {
		return Decision{State: Whitelisted}
	}

	ctx := r.Context()
	identity, hasIdentity := g.identities.Identity(r)
	if hasIdentity {
		ctx = sessions.WithIdentity(ctx, identity)
	}

	if raw, ok := ExtractInbound(r); ok {
		return g.decideInbound(ctx, raw, identity, hasIdentity)
	}

	if !hasIdentity {
		return Decision{State: SessionTokenMissingOrExpired, Err: autherrors.ErrAuthenticationRequired}
	}

	tok, err := g.tokens.Fetch(ctx, g.opts.Provider)
	if err != nil {
		if autherrors.Is(err, autherrors.ErrAuthenticationRequired) {
			return Decision{State: SessionTokenMissingOrExpired, Err: err}
		}
		return Decision{State: Failed, Err: err}
	}
	return Decision{
		State: SessionTokenValid,
		Auth:  &AuthContext{Provider: g.opts.Provider, Identity: &identity, Token: *tok, Source: SourceSession},
	}
}

func (g *Gate) decideInbound(ctx context.Context, raw string, identity sessions.Identity, hasIdentity bool) Decision {
	fields, err := ParseInbound(raw)
	if err != nil {
		return Decision{State: InboundTokenInvalid, Err: err}
	}
	if fields.IsExpired(NowTimeFunc()) {
		return Decision{State: InboundTokenExpired, Err: autherrors.ErrTokenExpiredInbound}
	}

	ac := &AuthContext{
		Provider: g.opts.Provider,
		Token:    token.OAuth2Token{ProviderName: g.opts.Provider, Fields: fields},
		Source:   SourceInbound,
	}
	if !hasIdentity {
		return Decision{State: InboundTokenValid, Auth: ac}
	}

	ac.Identity = &identity
	ac.Token.UserID = identity.UserID
	tok, err := g.tokens.Fetch(ctx, g.opts.Provider)
	switch {
	case err == nil:
		ac.Token = *tok
		ac.Source = SourceSession
	case !autherrors.Is(err, autherrors.ErrAuthenticationRequired):
		return Decision{State: Failed, Err: err}
	}
	return Decision{State: InboundTokenValid, Auth: ac}
}

// Middleware enforces Decide on every request.
func (g *Gate) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r)
		g.logDecision(r, d)
		switch d.State.Outcome() {
		case Allow:
			if d.Auth != nil {
				r = r.WithContext(attach(r.Context(), *d.Auth))
			}
			next(w, r)

		case Reject:
			log.Info().Str("path", r.URL.Path).Str("state", d.State.String()).Err(d.Err).Msg("inbound token rejected")
			writeUnauthorized(w, d.State)

		case Redirect:
			log.Debug().Str("path", r.URL.Path).Err(d.Err).Msg("authentication required")
			SetFailedAuthenticationURL(w, r, r.URL.RequestURI(), g.opts.FailedAuthCookieMaxAge)
			http.Redirect(w, r, g.opts.LogoutURL, http.StatusFound)

		default:
			log.Error().Str("path", r.URL.Path).Err(d.Err).Msg("authentication check failed")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
}

func (g *Gate) logDecision(r *http.Request, d Decision) {
	event := log.Debug()
	if !event.Enabled() {
		return
	}
	if g.opts.RouteNamer != nil {
		event = event.Str("endpoint", g.opts.RouteNamer(r))
	}
	event.Str("path", r.URL.Path).Str("whitelist", g.opts.Whitelist.String()).Str("state", d.State.String()).Msg("gate decision")
}

func attach(ctx context.Context, ac AuthContext) context.Context {
	if ac.Identity != nil {
		ctx = sessions.WithIdentity(ctx, *ac.Identity)
	}
	if ac.Source == SourceInbound {
		ctx = token.WithInbound(ctx, ac.Token)
	}
	return WithAuthContext(ctx, ac)
}

func writeUnauthorized(w http.ResponseWriter, state State) {
	description := "Invalid token"
	if state == InboundTokenExpired {
		description = "Token expired"
	}
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
