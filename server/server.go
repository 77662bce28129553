package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-oidc-gate/authflow"
	"github.com/jrsteele09/go-oidc-gate/gate"
	"github.com/jrsteele09/go-oidc-gate/internal/config"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Repos groups the stores the server reads and writes.
type Repos struct {
	Tokens    token.Repo
	Sessions  sessions.Repo
	AuthState authflow.Repo
}

type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	routeNames map[string]string
	handler    http.HandlerFunc

	config   config.Config
	repos    Repos
	provider ProtocolClient
	sessions *sessions.Manager
	gate     *gate.Gate
}

// New wires the login flow and the gate in front of every route. tokens is the
// token lifecycle manager that hands the gate usable session tokens.
func New(c config.Config, repos Repos, provider ProtocolClient, tokens gate.TokenFetcher) (*Server, error) {
	if repos.Tokens == nil || repos.Sessions == nil || repos.AuthState == nil {
		return nil, fmt.Errorf("[Server New] token, session and auth state repos are required")
	}
	if provider == nil || tokens == nil {
		return nil, fmt.Errorf("[Server New] provider client and token fetcher are required")
	}

	s := &Server{
		env:        c.GetEnv(),
		mux:        http.NewServeMux(),
		routeNames: make(map[string]string),
		config:     c,
		repos:      repos,
		provider:   provider,
		sessions:   sessions.NewManager(repos.Sessions, c.GetMaxSessionAge()),
	}

	s.gate = gate.New(gate.Options{
		Provider:               provider.Name(),
		Whitelist:              s.whitelist(),
		RouteNamer:             s.routeName,
		LogoutURL:              RouteLogout,
		FailedAuthCookieMaxAge: c.GetFailedAuthCookieMaxAge(),
	}, tokens, s.sessions)

	s.initRoutes()
	s.logRoutes()

	s.handler = ChainMiddleware(s.mux.ServeHTTP,
		s.LoggingMiddleware,
		s.RecoverMiddleware,
		s.FrameSecurityMiddleware,
		s.gate.Middleware,
		gate.RedirectUnauthorized(RouteLogout),
	)
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler(w, r)
}

// whitelist is the configured list plus the endpoints the login round trip itself needs.
func (s *Server) whitelist() config.Whitelist {
	w := config.NewWhitelist(RouteNameLogin, RouteNameLogout, RouteNameCallback, strings.Trim(s.config.GetRedirectURI(), "/"))
	for entry := range s.config.GetWhitelistedEndpoints() {
		w.Add(entry)
	}
	return w
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return ""
}
