package tokenfakerepo

import (
	"context"
	"sync"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
)

var _ token.Repo = (*FakeTokenRepo)(nil)

type key struct {
	provider string
	userID   string
}

// FakeTokenRepo keeps tokens in memory. It backs the "memory" DATABASE_URL and tests.
type FakeTokenRepo struct {
	tokens map[key]token.OAuth2Token
	writes int
	lock   sync.RWMutex
}

func NewFakeTokensRepo() *FakeTokenRepo {
	return &FakeTokenRepo{
		tokens: make(map[key]token.OAuth2Token),
	}
}

func (tr *FakeTokenRepo) Save(_ context.Context, provider, userID string, fields token.Fields) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	tr.tokens[key{provider, userID}] = token.OAuth2Token{ProviderName: provider, UserID: userID, Fields: fields}
	tr.writes++
	return nil
}

func (tr *FakeTokenRepo) Get(_ context.Context, provider, userID string) (*token.OAuth2Token, error) {
	tr.lock.RLock()
	defer tr.lock.RUnlock()

	t, ok := tr.tokens[key{provider, userID}]
	if !ok {
		return nil, autherrors.ErrTokenNotFound
	}
	return &t, nil
}

func (tr *FakeTokenRepo) GetWithRefreshToken(ctx context.Context, provider, userID string) (*token.OAuth2Token, error) {
	t, err := tr.Get(ctx, provider, userID)
	if err != nil {
		return nil, err
	}
	if !t.HasRefreshToken() {
		return nil, autherrors.ErrTokenNotFound
	}
	return t, nil
}

func (tr *FakeTokenRepo) UpdateTokens(_ context.Context, provider string, refreshed token.Fields, refreshToken, accessToken string) (*token.OAuth2Token, error) {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	for k, existing := range tr.tokens {
		if k.provider != provider || !existing.Matches(refreshToken, accessToken) {
			continue
		}
		merged := token.Merge(existing, refreshed)
		tr.tokens[k] = merged
		tr.writes++
		return &merged, nil
	}
	return nil, autherrors.ErrTokenNotFound
}

func (tr *FakeTokenRepo) Delete(_ context.Context, provider, userID string) error {
	tr.lock.Lock()
	defer tr.lock.Unlock()

	k := key{provider, userID}
	if _, ok := tr.tokens[k]; ok {
		delete(tr.tokens, k)
		tr.writes++
	}
	return nil
}

// Writes counts the mutations applied so far.
func (tr *FakeTokenRepo) Writes() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return tr.writes
}

// Len returns the number of stored records.
func (tr *FakeTokenRepo) Len() int {
	tr.lock.RLock()
	defer tr.lock.RUnlock()
	return len(tr.tokens)
}
