package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/oidcclient"
)

// ProtocolClient is the part of the provider client the login flow drives.
type ProtocolClient interface {
	Name() string
	AuthorizeURL(callbackURL, state, nonce, verifier string) string
	AuthorizeAccessToken(ctx context.Context, code, callbackURL, verifier string) (*oidcclient.TokenResult, error)
	ParseIdentityAssertion(ctx context.Context, result *oidcclient.TokenResult, nonce string) (map[string]any, error)
}

var _ ProtocolClient = (*oidcclient.Client)(nil)

// generateRandomString creates a random base64url string
func generateRandomString(length int) string {
	b := make([]byte, length)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// callbackURL is the absolute URL the provider sends the browser back to. BASE_URL wins
// when set; otherwise it is rebuilt from the request host.
func (s *Server) callbackURL(r *http.Request) string {
	if base := s.config.GetBaseURL(); base != "" {
		return strings.TrimRight(base, "/") + s.config.GetRedirectURI()
	}
	scheme := getScheme(r)
	if scheme == "" {
		scheme = s.config.GetScheme()
	}
	return scheme + "://" + r.Host + s.config.GetRedirectURI()
}

// userIDFromClaims picks the configured identity claim. A missing or empty claim is a
// deployment error, not a user error.
func userIDFromClaims(claims map[string]any, field string) (string, error) {
	value, ok := claims[field]
	if !ok || value == nil {
		return "", autherrors.NewMisconfiguredIdentityField(field, claims)
	}
	userID, ok := value.(string)
	if !ok {
		userID = fmt.Sprint(value)
	}
	if userID == "" {
		return "", autherrors.NewMisconfiguredIdentityField(field, claims)
	}
	return userID, nil
}
