package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc(RouteNameIndex, "GET "+RouteIndex, s.IndexHandler())
	s.RegisterRouteFunc(RouteNameStatus, "GET "+RouteStatus, s.StatusHandler())
	s.RegisterRouteFunc(RouteNameMe, "GET "+RouteMe, s.MeHandler())

	// LOGIN
	s.RegisterRouteFunc(RouteNameLogin, "GET "+RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc(RouteNameLogout, "GET "+RouteLogout, s.LogoutHandler())
	s.RegisterRouteFunc(RouteNameCallback, "GET "+s.config.GetRedirectURI(), s.OAuthCallbackHandler())
	s.RegisterRouteFunc(RouteNameCallback, "POST "+s.config.GetRedirectURI(), s.OAuthCallbackHandler()) // For form_post response mode
}

func (s *Server) RegisterRouteHandler(name, pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.routeNames[pattern] = name
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(name, pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(name, pattern, http.HandlerFunc(handler))
}

// routeName resolves the request against the mux and returns the registered name of
// the matching route.
func (s *Server) routeName(r *http.Request) string {
	_, pattern := s.mux.Handler(r)
	return s.routeNames[pattern]
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Str("name", s.routeNames[route]).Msg("route")
	}
}
