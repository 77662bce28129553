// Package repotest holds behaviour tests shared by every token.Repo implementation.
package repotest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/stretchr/testify/require"
)

const (
	provider = "google"
	userID   = "user-1"
)

func sampleFields(suffix string) token.Fields {
	return token.Fields{
		AccessToken:  "access-" + suffix,
		RefreshToken: "refresh-" + suffix,
		TokenType:    "Bearer",
		Scope:        "openid email profile",
		ExpiresIn:    3600,
		ExpiresAt:    1_700_003_600,
	}
}

// Run executes the suite. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) token.Repo) {
	ctx := context.Background()

	t.Run("save then get round trips", func(t *testing.T) {
		repo := newRepo(t)
		fields := sampleFields("a")
		require.NoError(t, repo.Save(ctx, provider, userID, fields))

		got, err := repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, provider, got.ProviderName)
		require.Equal(t, userID, got.UserID)
		require.Equal(t, fields, got.Fields)
	})

	t.Run("get absent", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, provider, "nobody")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	})

	t.Run("save upserts", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("b")))

		got, err := repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, sampleFields("b"), got.Fields)
	})

	t.Run("records are keyed by provider and user", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))
		require.NoError(t, repo.Save(ctx, "azure", userID, sampleFields("b")))
		require.NoError(t, repo.Save(ctx, provider, "user-2", sampleFields("c")))

		got, err := repo.Get(ctx, "azure", userID)
		require.NoError(t, err)
		require.Equal(t, "access-b", got.AccessToken)

		got, err = repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, "access-a", got.AccessToken)
	})

	t.Run("get with refresh token", func(t *testing.T) {
		repo := newRepo(t)
		withRefresh := sampleFields("a")
		withoutRefresh := sampleFields("b")
		withoutRefresh.RefreshToken = ""
		require.NoError(t, repo.Save(ctx, provider, userID, withRefresh))
		require.NoError(t, repo.Save(ctx, provider, "user-2", withoutRefresh))

		got, err := repo.GetWithRefreshToken(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, "refresh-a", got.RefreshToken)

		_, err = repo.GetWithRefreshToken(ctx, provider, "user-2")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)

		_, err = repo.GetWithRefreshToken(ctx, provider, "nobody")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	})

	t.Run("update tokens preserves refresh token", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))

		refreshed := token.Fields{AccessToken: "access-new", ExpiresIn: 60, ExpiresAt: 1_800_000_000}
		updated, err := repo.UpdateTokens(ctx, provider, refreshed, "refresh-a", "access-a")
		require.NoError(t, err)
		require.Equal(t, "access-new", updated.AccessToken)
		require.Equal(t, "refresh-a", updated.RefreshToken)
		require.Equal(t, userID, updated.UserID)

		got, err := repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, updated.Fields, got.Fields)
	})

	t.Run("update tokens takes rotated refresh token", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))

		refreshed := token.Fields{AccessToken: "access-new", RefreshToken: "refresh-new", ExpiresAt: 1_800_000_000}
		_, err := repo.UpdateTokens(ctx, provider, refreshed, "refresh-a", "")
		require.NoError(t, err)

		got, err := repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		require.Equal(t, "refresh-new", got.RefreshToken)
	})

	t.Run("update tokens by access token", func(t *testing.T) {
		repo := newRepo(t)
		fields := sampleFields("a")
		fields.RefreshToken = ""
		require.NoError(t, repo.Save(ctx, provider, userID, fields))

		updated, err := repo.UpdateTokens(ctx, provider, token.Fields{AccessToken: "access-new", ExpiresAt: 5}, "", "access-a")
		require.NoError(t, err)
		require.Equal(t, "access-new", updated.AccessToken)
	})

	t.Run("update tokens for unknown record", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))

		_, err := repo.UpdateTokens(ctx, provider, token.Fields{AccessToken: "x"}, "refresh-unknown", "")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)

		_, err = repo.UpdateTokens(ctx, "azure", token.Fields{AccessToken: "x"}, "refresh-a", "")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)

		_, err = repo.UpdateTokens(ctx, provider, token.Fields{AccessToken: "x"}, "", "")
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		require.NoError(t, repo.Save(ctx, provider, userID, sampleFields("a")))

		require.NoError(t, repo.Delete(ctx, provider, userID))
		require.NoError(t, repo.Delete(ctx, provider, userID))

		_, err := repo.Get(ctx, provider, userID)
		require.ErrorIs(t, err, autherrors.ErrTokenNotFound)
	})

	t.Run("concurrent saves leave one complete record", func(t *testing.T) {
		repo := newRepo(t)
		const writers = 16

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.Save(ctx, provider, userID, sampleFields(fmt.Sprint(i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		got, err := repo.Get(ctx, provider, userID)
		require.NoError(t, err)
		suffix := got.AccessToken[len("access-"):]
		require.Equal(t, sampleFields(suffix), got.Fields)
	})
}
