package bunrepo

import (
	"context"
	"database/sql"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/uptrace/bun"
)

// tokenRecord is the oauth2_tokens row. The composite primary key enforces one live
// record per (provider, user).
type tokenRecord struct {
	bun.BaseModel `bun:"table:oauth2_tokens,alias:t"`

	ProviderName string `bun:"provider_name,pk"`
	UserID       string `bun:"user_id,pk"`
	AccessToken  string `bun:"access_token,notnull"`
	RefreshToken string `bun:"refresh_token,notnull"`
	TokenType    string `bun:"token_type,notnull"`
	Scope        string `bun:"scope,notnull"`
	ExpiresIn    int64  `bun:"expires_in,notnull"`
	ExpiresAt    int64  `bun:"expires_at,notnull"`
}

func newRecord(t token.OAuth2Token) *tokenRecord {
	return &tokenRecord{
		ProviderName: t.ProviderName,
		UserID:       t.UserID,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Scope:        t.Scope,
		ExpiresIn:    t.ExpiresIn,
		ExpiresAt:    t.ExpiresAt,
	}
}

func (r *tokenRecord) toToken() *token.OAuth2Token {
	return &token.OAuth2Token{
		ProviderName: r.ProviderName,
		UserID:       r.UserID,
		Fields: token.Fields{
			AccessToken:  r.AccessToken,
			RefreshToken: r.RefreshToken,
			TokenType:    r.TokenType,
			Scope:        r.Scope,
			ExpiresIn:    r.ExpiresIn,
			ExpiresAt:    r.ExpiresAt,
		},
	}
}

var _ token.Repo = (*BunTokenRepository)(nil)

// BunTokenRepository implements token.Repo using Bun ORM
type BunTokenRepository struct {
	db *bun.DB
}

// NewBunTokenRepository creates a new Bun-based token repository
func NewBunTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db}
}

// CreateSchema creates the oauth2_tokens table when it does not exist yet.
func (r *BunTokenRepository) CreateSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*tokenRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return autherrors.Storage("create oauth2_tokens table", err)
}

// Save upserts in a single statement so readers never observe a partial record.
func (r *BunTokenRepository) Save(ctx context.Context, provider, userID string, fields token.Fields) error {
	rec := newRecord(token.OAuth2Token{ProviderName: provider, UserID: userID, Fields: fields})
	_, err := r.db.NewInsert().
		Model(rec).
		On("CONFLICT (provider_name, user_id) DO UPDATE").
		Set("access_token = EXCLUDED.access_token").
		Set("refresh_token = EXCLUDED.refresh_token").
		Set("token_type = EXCLUDED.token_type").
		Set("scope = EXCLUDED.scope").
		Set("expires_in = EXCLUDED.expires_in").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	return autherrors.Storage("save token", err)
}

func (r *BunTokenRepository) Get(ctx context.Context, provider, userID string) (*token.OAuth2Token, error) {
	rec := new(tokenRecord)
	err := r.db.NewSelect().
		Model(rec).
		Where("provider_name = ?", provider).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, mapScanError("get token", err)
	}
	return rec.toToken(), nil
}

func (r *BunTokenRepository) GetWithRefreshToken(ctx context.Context, provider, userID string) (*token.OAuth2Token, error) {
	rec := new(tokenRecord)
	err := r.db.NewSelect().
		Model(rec).
		Where("provider_name = ?", provider).
		Where("user_id = ?", userID).
		Where("refresh_token <> ''").
		Scan(ctx)
	if err != nil {
		return nil, mapScanError("get token with refresh token", err)
	}
	return rec.toToken(), nil
}

// UpdateTokens runs the lookup, merge and write in one transaction.
func (r *BunTokenRepository) UpdateTokens(ctx context.Context, provider string, refreshed token.Fields, refreshToken, accessToken string) (*token.OAuth2Token, error) {
	if refreshToken == "" && accessToken == "" {
		return nil, autherrors.ErrTokenNotFound
	}

	var merged token.OAuth2Token
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rec := new(tokenRecord)
		q := tx.NewSelect().
			Model(rec).
			Where("provider_name = ?", provider)
		if refreshToken != "" {
			q = q.Where("refresh_token = ?", refreshToken)
		} else {
			q = q.Where("access_token = ?", accessToken)
		}
		if err := q.Limit(1).Scan(ctx); err != nil {
			return mapScanError("find token to update", err)
		}

		merged = token.Merge(*rec.toToken(), refreshed)
		if _, err := tx.NewUpdate().Model(newRecord(merged)).WherePK().Exec(ctx); err != nil {
			return autherrors.Storage("update token", err)
		}
		return nil
	})
	if err != nil {
		if autherrors.Is(err, autherrors.ErrTokenNotFound) || autherrors.Is(err, autherrors.ErrStorageFailure) {
			return nil, err
		}
		return nil, autherrors.Storage("update token", err)
	}
	return &merged, nil
}

func (r *BunTokenRepository) Delete(ctx context.Context, provider, userID string) error {
	_, err := r.db.NewDelete().
		Model((*tokenRecord)(nil)).
		Where("provider_name = ?", provider).
		Where("user_id = ?", userID).
		Exec(ctx)
	return autherrors.Storage("delete token", err)
}

func mapScanError(op string, err error) error {
	if autherrors.Is(err, sql.ErrNoRows) {
		return autherrors.ErrTokenNotFound
	}
	return autherrors.Storage(op, err)
}
