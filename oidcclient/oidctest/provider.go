// Package oidctest runs a minimal OpenID provider for tests: discovery, JWKS and a
// token endpoint supporting authorization_code and refresh_token grants.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
	keyID        = "test-key"
)

type issuedCode struct {
	nonce  string
	claims map[string]any
}

// Provider is a fake OpenID provider backed by httptest.Server.
type Provider struct {
	Server *httptest.Server

	// RotateRefreshTokens makes refresh responses carry a new refresh token.
	RotateRefreshTokens bool
	// AccessTokenTTL is the expires_in returned with every access token.
	AccessTokenTTL time.Duration

	key *rsa.PrivateKey

	mu            sync.Mutex
	codes         map[string]issuedCode
	revoked       map[string]bool
	issued        int
	refreshCalls  int
	exchangeCalls int
}

// NewProvider starts the provider; it is closed when the test ends.
func NewProvider(t *testing.T) *Provider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	p := &Provider{
		AccessTokenTTL: time.Hour,
		key:            key,
		codes:          make(map[string]issuedCode),
		revoked:        make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", p.discovery)
	mux.HandleFunc("GET /jwks", p.jwks)
	mux.HandleFunc("POST /token", p.token)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Issuer is the issuer URL to configure clients with.
func (p *Provider) Issuer() string {
	return p.Server.URL
}

// IssueCode registers an authorization code that will be exchanged for an ID token
// carrying claims and nonce.
func (p *Provider) IssueCode(nonce string, claims map[string]any) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.issued++
	code := fmt.Sprintf("code-%d", p.issued)
	p.codes[code] = issuedCode{nonce: nonce, claims: claims}
	return code
}

// Revoke makes refresh attempts with refreshToken fail with invalid_grant.
func (p *Provider) Revoke(refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.revoked[refreshToken] = true
}

func (p *Provider) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func (p *Provider) ExchangeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchangeCalls
}

func (p *Provider) discovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                p.Issuer(),
		"authorization_endpoint":                p.Issuer() + "/authorize",
		"token_endpoint":                        p.Issuer() + "/token",
		"jwks_uri":                              p.Issuer() + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) jwks(w http.ResponseWriter, r *http.Request) {
	pub := p.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": keyID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (p *Provider) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		p.exchangeCalls++
		issued, ok := p.codes[r.PostForm.Get("code")]
		if !ok || r.PostForm.Get("code_verifier") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		delete(p.codes, r.PostForm.Get("code"))

		idToken, err := p.signIDToken(issued)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  fmt.Sprintf("access-%d", p.exchangeCalls),
			"refresh_token": fmt.Sprintf("refresh-%d", p.exchangeCalls),
			"token_type":    "Bearer",
			"scope":         "openid email profile",
			"expires_in":    int(p.AccessTokenTTL.Seconds()),
			"id_token":      idToken,
		})

	case "refresh_token":
		p.refreshCalls++
		refreshToken := r.PostForm.Get("refresh_token")
		if refreshToken == "" || p.revoked[refreshToken] {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		resp := map[string]any{
			"access_token": fmt.Sprintf("refreshed-access-%d", p.refreshCalls),
			"token_type":   "Bearer",
			"expires_in":   int(p.AccessTokenTTL.Seconds()),
		}
		if p.RotateRefreshTokens {
			resp["refresh_token"] = fmt.Sprintf("rotated-refresh-%d", p.refreshCalls)
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
	}
}

func (p *Provider) signIDToken(issued issuedCode) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": p.Issuer(),
		"aud": ClientID,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if issued.nonce != "" {
		claims["nonce"] = issued.nonce
	}
	for k, v := range issued.claims {
		claims[k] = v
	}
	if _, ok := claims["sub"]; !ok {
		claims["sub"] = "subject"
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = keyID
	return tok.SignedString(p.key)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
