package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-oidc-gate/gate"
	"github.com/rs/zerolog/log"
)

// StatusHandler is the health endpoint. It is whitelisted by default.
func (s *Server) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"app":    s.config.GetAppName(),
		})
	}
}

// MeResponse describes the caller as the gate resolved it. Credentials are never echoed.
type MeResponse struct {
	Provider  string         `json:"provider"`
	UserID    string         `json:"user_id,omitempty"`
	Claims    map[string]any `json:"claims,omitempty"`
	Source    gate.Source    `json:"token_source"`
	Scope     string         `json:"scope,omitempty"`
	ExpiresAt int64          `json:"expires_at"`
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := gate.FromContext(r.Context())
		if !ok {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		resp := MeResponse{
			Provider:  ac.Provider,
			Source:    ac.Source,
			Scope:     ac.Token.Scope,
			ExpiresAt: ac.Token.ExpiresAt,
		}
		if ac.Identity != nil {
			resp.UserID = ac.Identity.UserID
			resp.Claims = ac.Identity.Claims
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// IndexHandler is where a fresh login lands when there is nowhere else to go.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := gate.FromContext(r.Context())
		if !ok || ac.Identity == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "%s: logged in as %s\n", s.config.GetAppName(), ac.Identity.UserID)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
