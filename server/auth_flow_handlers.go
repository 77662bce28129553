package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-oidc-gate/authflow"
	"github.com/jrsteele09/go-oidc-gate/gate"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/internal/logging"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

type expiringStates interface {
	DeleteExpired(now time.Time, timeout time.Duration) int
}

// LoginHandler starts the authorization-code flow: it remembers state, nonce and the
// PKCE verifier and sends the browser to the provider.
func (s *Server) LoginHandler() http.HandlerFunc {
	return gate.Handle(RouteLogout, func(w http.ResponseWriter, r *http.Request) error {
		now := NowTimeFunc()
		if states, ok := s.repos.AuthState.(expiringStates); ok {
			states.DeleteExpired(now, s.config.GetAuthStateTimeout())
		}

		state := generateRandomString(32)
		authState := &authflow.State{
			Nonce:        generateRandomString(32),
			CodeVerifier: oauth2.GenerateVerifier(),
			CreatedAt:    now,
		}
		if err := s.repos.AuthState.Upsert(state, authState); err != nil {
			return autherrors.Wrapf(err, "[server Login] failed to store auth state")
		}

		http.Redirect(w, r, s.provider.AuthorizeURL(s.callbackURL(r), state, authState.Nonce, authState.CodeVerifier), http.StatusFound)
		return nil
	})
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return gate.Handle(RouteLogout, s.oauthCallback)
}

// oauthCallback completes the login: it exchanges the code, verifies the identity
// token, stores the provider token for the configured identity claim and starts a
// session.
func (s *Server) oauthCallback(w http.ResponseWriter, r *http.Request) error {
	// r.FormValue works for both query params and POST form data
	if errorParam := r.FormValue("error"); errorParam != "" {
		return fmt.Errorf("[server Callback] %w: provider returned %s: %s", autherrors.ErrProviderProtocol, errorParam, r.FormValue("error_description"))
	}

	state := r.FormValue("state")
	authState, err := s.repos.AuthState.Get(state)
	if err != nil || authState == nil {
		return fmt.Errorf("[server Callback] %w: %v", autherrors.ErrInvalidState, err)
	}
	// Clean up state after use
	_ = s.repos.AuthState.Delete(state)

	now := NowTimeFunc()
	if authState.Expired(now, s.config.GetAuthStateTimeout()) {
		return fmt.Errorf("[server Callback] %w: login took longer than %s", autherrors.ErrInvalidState, s.config.GetAuthStateTimeout())
	}

	code := r.FormValue("code")
	if code == "" {
		return fmt.Errorf("[server Callback] %w: missing code parameter", autherrors.ErrProviderProtocol)
	}

	ctx := r.Context()
	result, err := s.provider.AuthorizeAccessToken(ctx, code, s.callbackURL(r), authState.CodeVerifier)
	if err != nil {
		return autherrors.Wrapf(err, "[server Callback] token exchange")
	}
	claims, err := s.provider.ParseIdentityAssertion(ctx, result, authState.Nonce)
	if err != nil {
		return autherrors.Wrapf(err, "[server Callback] identity token")
	}

	userID, err := userIDFromClaims(claims, s.config.GetUserIDField())
	if err != nil {
		return err
	}

	// Only the token fields are persisted; the identity token and any extras stay out.
	fields := token.Fields{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		Scope:        result.Scope,
		ExpiresIn:    result.ExpiresIn,
		ExpiresAt:    result.ExpiresAt,
	}.WithExpiry(now)
	if err := s.repos.Tokens.Save(ctx, s.provider.Name(), userID, fields); err != nil {
		return autherrors.Wrapf(err, "[server Callback] store token")
	}

	if err := s.sessions.Start(w, r, sessions.Identity{UserID: userID, Claims: claims}); err != nil {
		return autherrors.Wrapf(err, "[server Callback] start session")
	}
	log.Info().Str("user", userID).Str("access_token", logging.Redact(fields.AccessToken)).Msg("user logged in")

	target := s.config.GetOverwriteRedirectURI()
	failedURL, ok := gate.PopFailedAuthenticationURL(w, r)
	if target == "" && ok {
		target = failedURL
	}
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
	return nil
}

// LogoutHandler ends the session and forgets the stored token of the identity it held.
// Without a session nothing is deleted.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.sessions.End(w, r)
		if ok {
			if err := s.repos.Tokens.Delete(r.Context(), s.provider.Name(), identity.UserID); err != nil {
				log.Error().Err(err).Str("user", identity.UserID).Msg("failed to delete stored token on logout")
			}
		}
		http.Redirect(w, r, RouteLogin, http.StatusFound)
	}
}
