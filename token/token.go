package token

import "time"

// Fields is the credential material returned by a token exchange or refresh. These are
// the only attributes persisted for a login.
type Fields struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"` // informational
	ExpiresAt    int64  `json:"expires_at"`           // epoch seconds
}

// OAuth2Token is the stored credential for one (provider, user) pair.
type OAuth2Token struct {
	ProviderName string `json:"provider_name,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Fields
}

// IsExpired compares expires_at against now in whole seconds. A token expiring in the
// current second is already expired.
func (f Fields) IsExpired(now time.Time) bool {
	return f.ExpiresAt <= now.Unix()
}

func (f Fields) HasRefreshToken() bool {
	return f.RefreshToken != ""
}

// WithExpiry fills ExpiresAt from ExpiresIn when the provider only reported a lifetime.
func (f Fields) WithExpiry(now time.Time) Fields {
	if f.ExpiresAt == 0 && f.ExpiresIn > 0 {
		f.ExpiresAt = now.Unix() + f.ExpiresIn
	}
	return f
}

// Merge applies refreshed credentials on top of an existing record. The refresh token
// and descriptive fields survive when the provider omits them.
func Merge(existing OAuth2Token, refreshed Fields) OAuth2Token {
	merged := existing
	merged.AccessToken = refreshed.AccessToken
	merged.ExpiresIn = refreshed.ExpiresIn
	merged.ExpiresAt = refreshed.ExpiresAt
	if refreshed.RefreshToken != "" {
		merged.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.TokenType != "" {
		merged.TokenType = refreshed.TokenType
	}
	if refreshed.Scope != "" {
		merged.Scope = refreshed.Scope
	}
	return merged
}

// Matches reports whether the record is the one a refresh was issued for: by refresh
// token when known, otherwise by access token.
func (t OAuth2Token) Matches(refreshToken, accessToken string) bool {
	if refreshToken != "" {
		return t.RefreshToken == refreshToken
	}
	return accessToken != "" && t.AccessToken == accessToken
}
