package lifecycle

import (
	"context"
	"fmt"
	"time"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/internal/logging"
	"github.com/jrsteele09/go-oidc-gate/oidcclient"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// RefreshTimeout bounds a shared refresh, including persisting its result.
var RefreshTimeout = 30 * time.Second

// Refresher redeems a refresh token at the provider.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*token.Fields, error)
}

// Manager decides whether the stored token for the caller can be used as is, must be
// refreshed, or forces a new login. The token repository stays the single source of
// truth; the manager holds no token state of its own.
type Manager struct {
	repo      token.Repo
	refresher Refresher

	// Concurrent refreshes of the same refresh token share one provider call.
	group singleflight.Group
}

var _ oidcclient.TokenHooks = (*Manager)(nil)

func NewManager(repo token.Repo, refresher Refresher) *Manager {
	return &Manager{
		repo:      repo,
		refresher: refresher,
	}
}

// Fetch returns the stored token for the identity carried by ctx, refreshing it first
// when expires_at <= now. Without a session identity, a credential the gate adopted
// from the request is returned instead.
func (m *Manager) Fetch(ctx context.Context, provider string) (*token.OAuth2Token, error) {
	identity, ok := sessions.IdentityFromContext(ctx)
	if !ok || identity.UserID == "" {
		if inbound, ok := token.InboundFromContext(ctx); ok {
			return &inbound, nil
		}
		log.Debug().Str("provider", provider).Msg("User not found in the session")
		return nil, fmt.Errorf("%w: no user in session", autherrors.ErrAuthenticationRequired)
	}

	tok, err := m.repo.Get(ctx, provider, identity.UserID)
	if autherrors.Is(err, autherrors.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: no token found for user %s", autherrors.ErrAuthenticationRequired, identity.UserID)
	}
	if err != nil {
		log.Error().Err(err).Str("provider", provider).Str("user_id", identity.UserID).Msg("Failed to load token")
		return nil, err
	}

	if !tok.IsExpired(NowTimeFunc()) {
		return tok, nil
	}

	withRefresh, err := m.repo.GetWithRefreshToken(ctx, provider, identity.UserID)
	if autherrors.Is(err, autherrors.ErrTokenNotFound) {
		log.Info().Str("user_id", identity.UserID).Msg("Token expired and no refresh token stored, login required")
		return nil, fmt.Errorf("%w: token expired and no refresh token", autherrors.ErrAuthenticationRequired)
	}
	if err != nil {
		return nil, err
	}

	return m.Refresh(ctx, provider, withRefresh.RefreshToken, withRefresh.AccessToken)
}

// Refresh redeems refreshToken and merges the result into the stored record. Provider
// failures are never retried; they surface as ErrAuthenticationRequired.
func (m *Manager) Refresh(ctx context.Context, provider, refreshToken, accessToken string) (*token.OAuth2Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", autherrors.ErrAuthenticationRequired)
	}

	v, err, shared := m.group.Do(provider+"\x00"+refreshToken, func() (any, error) {
		// The refresh is shared by every waiting caller, so one caller going away must not cancel it.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefreshTimeout)
		defer cancel()

		fields, err := m.refresher.RefreshAccessToken(ctx, refreshToken)
		if err != nil {
			log.Error().Err(err).Str("provider", provider).Str("refresh_token", logging.Redact(refreshToken)).Msg("Couldn't refresh the token")
			if !autherrors.Is(err, autherrors.ErrRefreshFailure) {
				err = fmt.Errorf("%w: %w", autherrors.ErrRefreshFailure, err)
			}
			return nil, fmt.Errorf("%w: %w", autherrors.ErrAuthenticationRequired, err)
		}

		updated, err := m.repo.UpdateTokens(ctx, provider, fields.WithExpiry(NowTimeFunc()), refreshToken, accessToken)
		if autherrors.Is(err, autherrors.ErrTokenNotFound) {
			// The record went away while refreshing, e.g. a concurrent logout.
			return nil, fmt.Errorf("%w: token removed during refresh", autherrors.ErrAuthenticationRequired)
		}
		if err != nil {
			log.Error().Err(err).Str("provider", provider).Msg("Failed to persist refreshed token")
			return nil, err
		}
		return updated, nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().Str("provider", provider).Bool("shared", shared).Msg("Token refreshed")
	tok := *v.(*token.OAuth2Token)
	return &tok, nil
}

// Update is called by the protocol client when it decides a token must be renewed. It
// goes through Refresh so the repository sees every renewal.
func (m *Manager) Update(ctx context.Context, provider string, current token.OAuth2Token) (*token.OAuth2Token, error) {
	return m.Refresh(ctx, provider, current.RefreshToken, current.AccessToken)
}
