package token

import "context"

// Repo is durable keyed storage for OAuth2 tokens. Records are unique per
// (provider, user id); every write replaces the whole record.
//
// Absent records are reported as errors.ErrTokenNotFound. Backend failures wrap
// errors.ErrStorageFailure.
type Repo interface {
	// Save upserts the record for (provider, userID).
	Save(ctx context.Context, provider, userID string, fields Fields) error

	Get(ctx context.Context, provider, userID string) (*OAuth2Token, error)

	// GetWithRefreshToken is Get for callers that need a refresh token; a record
	// without one is reported as not found.
	GetWithRefreshToken(ctx context.Context, provider, userID string) (*OAuth2Token, error)

	// UpdateTokens merges refreshed credentials into the record identified by
	// refreshToken (or accessToken when no refresh token is known) and returns the result.
	UpdateTokens(ctx context.Context, provider string, refreshed Fields, refreshToken, accessToken string) (*OAuth2Token, error)

	// Delete is idempotent.
	Delete(ctx context.Context, provider, userID string) error
}
