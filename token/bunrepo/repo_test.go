package bunrepo_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-oidc-gate/internal/db"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/jrsteele09/go-oidc-gate/token/bunrepo"
	"github.com/jrsteele09/go-oidc-gate/token/repotest"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) *bunrepo.BunTokenRepository {
	t.Helper()

	ctx := context.Background()
	database, err := db.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	repo := bunrepo.NewBunTokenRepository(database)
	require.NoError(t, repo.CreateSchema(ctx))
	return repo
}

func TestBunTokenRepository(t *testing.T) {
	repotest.Run(t, func(t *testing.T) token.Repo {
		return setupRepo(t)
	})
}

func TestCreateSchemaIsRepeatable(t *testing.T) {
	repo := setupRepo(t)
	require.NoError(t, repo.CreateSchema(context.Background()))
}

func TestClosedDatabaseIsStorageFailure(t *testing.T) {
	ctx := context.Background()
	database, err := db.Open(ctx, ":memory:")
	require.NoError(t, err)
	repo := bunrepo.NewBunTokenRepository(database)
	require.NoError(t, repo.CreateSchema(ctx))
	require.NoError(t, db.Close(database))

	_, err = repo.Get(ctx, "google", "user-1")
	require.ErrorIs(t, err, autherrors.ErrStorageFailure)

	err = repo.Save(ctx, "google", "user-1", token.Fields{AccessToken: "a"})
	require.ErrorIs(t, err, autherrors.ErrStorageFailure)
	require.NotErrorIs(t, err, autherrors.ErrTokenNotFound)
}
