package gate_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-oidc-gate/gate"
	"github.com/jrsteele09/go-oidc-gate/internal/config"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/sessions"
	"github.com/jrsteele09/go-oidc-gate/token"
	"github.com/stretchr/testify/require"
)

const (
	testProvider = "google"
	logoutURL    = "/logout"
)

var testNow = time.Unix(1_700_000_000, 0)

type fakeTokens struct {
	tok   *token.OAuth2Token
	err   error
	calls int
}

func (f *fakeTokens) Fetch(ctx context.Context, provider string) (*token.OAuth2Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.tok == nil {
		return nil, autherrors.ErrAuthenticationRequired
	}
	t := *f.tok
	return &t, nil
}

type fakeIdentities struct {
	identity *sessions.Identity
}

func (f fakeIdentities) Identity(r *http.Request) (sessions.Identity, bool) {
	if f.identity == nil {
		return sessions.Identity{}, false
	}
	return *f.identity, true
}

type recordingHandler struct {
	called bool
	auth   gate.AuthContext
	hasCtx bool
	ctx    context.Context
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	h.auth, h.hasCtx = gate.FromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

type fixture struct {
	tokens  *fakeTokens
	handler *recordingHandler
	gate    *gate.Gate
}

func setup(t *testing.T, identity *sessions.Identity) *fixture {
	t.Helper()

	gate.NowTimeFunc = func() time.Time { return testNow }
	t.Cleanup(func() { gate.NowTimeFunc = time.Now })

	tokens := &fakeTokens{}
	return &fixture{
		tokens:  tokens,
		handler: &recordingHandler{},
		gate: gate.New(gate.Options{
			Provider:  testProvider,
			Whitelist: config.NewWhitelist("status", "login", "/auth/", "healthcheck"),
			RouteNamer: func(r *http.Request) string {
				switch r.URL.Path {
				case "/health/check":
					return "healthcheck"
				case "/internal/metrics":
					return "metrics"
				}
				return ""
			},
			LogoutURL:              logoutURL,
			FailedAuthCookieMaxAge: 10 * time.Minute,
		}, tokens, fakeIdentities{identity: identity}),
	}
}

func (f *fixture) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.gate.Middleware(f.handler.ServeHTTP)(rec, r)
	return rec
}

func jsonToken(accessToken string, expiresAt int64) string {
	return fmt.Sprintf(`{"access_token":%q,"token_type":"Bearer","expires_at":%d}`, accessToken, expiresAt)
}

func signedJWT(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-checked"))
	require.NoError(t, err)
	return s
}

func TestWhitelistSkipsAuthentication(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		whitelist bool
	}{
		{name: "configured path", path: "/status", whitelist: true},
		{name: "trailing slash", path: "/status/", whitelist: true},
		{name: "nested path entry", path: "/auth", whitelist: true},
		{name: "route name", path: "/health/check", whitelist: true},
		{name: "route name not listed", path: "/internal/metrics", whitelist: false},
		{name: "protected", path: "/dashboard", whitelist: false},
		{name: "root", path: "/", whitelist: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			// An expired credential on a whitelisted route is never looked at.
			req.Header.Set("Authorization", "Bearer "+jsonToken("old", testNow.Unix()-10))

			rec := f.serve(req)
			require.Equal(t, tt.whitelist, f.handler.called)
			if tt.whitelist {
				require.Equal(t, http.StatusOK, rec.Code)
				require.False(t, f.handler.hasCtx)
				require.Equal(t, 0, f.tokens.calls)
			}
		})
	}
}

func TestExpiredInboundTokenIsRejected(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("x", testNow.Unix()-1))

	rec := f.serve(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
	require.Contains(t, rec.Body.String(), "Token expired")
	require.False(t, f.handler.called)
	require.Equal(t, 0, f.tokens.calls)
}

func TestInboundRecordWithoutAccessTokenIsJudgedOnExpiry(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected gate.State
	}{
		{name: "expired", raw: fmt.Sprintf(`{"expires_at": %d}`, testNow.Unix()-10), expected: gate.InboundTokenExpired},
		{name: "fresh", raw: fmt.Sprintf(`{"expires_at": %d}`, testNow.Unix()+100), expected: gate.InboundTokenValid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
			req.Header.Set("Authorization", "Bearer "+tt.raw)

			d := f.gate.Decide(req)
			require.Equal(t, tt.expected, d.State)
			if tt.expected == gate.InboundTokenExpired {
				require.ErrorIs(t, d.Err, autherrors.ErrTokenExpiredInbound)
			} else {
				require.NoError(t, d.Err)
			}
		})
	}
}

func TestInboundTokenExpiringNowIsRejected(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/data?access_token="+url.QueryEscape(jsonToken("x", testNow.Unix())), nil)

	rec := f.serve(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedInboundTokenIsRejected(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rec := f.serve(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "Invalid token")
	require.False(t, f.handler.called)
}

func TestValidInboundTokenWithoutSessionIsAdopted(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("service", testNow.Unix()+60))

	rec := f.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.handler.called)
	require.Equal(t, gate.SourceInbound, f.handler.auth.Source)
	require.Equal(t, "service", f.handler.auth.Token.AccessToken)
	require.Nil(t, f.handler.auth.Identity)

	adopted, ok := token.InboundFromContext(f.handler.ctx)
	require.True(t, ok)
	require.Equal(t, "service", adopted.AccessToken)
	require.Equal(t, 0, f.tokens.calls)
}

func TestValidInboundTokenPrefersSessionToken(t *testing.T) {
	identity := &sessions.Identity{UserID: "jo@example.com"}
	f := setup(t, identity)
	f.tokens.tok = &token.OAuth2Token{ProviderName: testProvider, UserID: identity.UserID, Fields: token.Fields{AccessToken: "stored", ExpiresAt: testNow.Unix() + 600}}

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("service", testNow.Unix()+60))

	rec := f.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, gate.SourceSession, f.handler.auth.Source)
	require.Equal(t, "stored", f.handler.auth.Token.AccessToken)
	_, ok := token.InboundFromContext(f.handler.ctx)
	require.False(t, ok)
}

func TestValidInboundTokenFallsBackWhenSessionTokenUnusable(t *testing.T) {
	identity := &sessions.Identity{UserID: "jo@example.com"}
	f := setup(t, identity)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("service", testNow.Unix()+60))

	rec := f.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, gate.SourceInbound, f.handler.auth.Source)
	require.Equal(t, "service", f.handler.auth.Token.AccessToken)
	require.Equal(t, identity.UserID, f.handler.auth.Identity.UserID)
	require.Equal(t, 1, f.tokens.calls)
}

func TestInboundStorageFailureIsFatal(t *testing.T) {
	f := setup(t, &sessions.Identity{UserID: "jo@example.com"})
	f.tokens.err = autherrors.Storage("get token", fmt.Errorf("disk full"))

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("service", testNow.Unix()+60))

	rec := f.serve(req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.False(t, f.handler.called)
}

func TestHeaderTakesPrecedenceOverQuery(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/data?access_token="+url.QueryEscape(jsonToken("fresh", testNow.Unix()+60)), nil)
	req.Header.Set("Authorization", "Bearer "+jsonToken("stale", testNow.Unix()-60))

	rec := f.serve(req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFormTokenIsAccepted(t *testing.T) {
	f := setup(t, nil)
	form := url.Values{"access_token": {jsonToken("from-form", testNow.Unix()+60)}}
	req := httptest.NewRequest(http.MethodPost, "/api/data", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := f.serve(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "from-form", f.handler.auth.Token.AccessToken)
}

func TestJWTInboundToken(t *testing.T) {
	tests := []struct {
		name     string
		claims   jwt.MapClaims
		expected int
	}{
		{name: "fresh", claims: jwt.MapClaims{"sub": "svc", "exp": testNow.Unix() + 300}, expected: http.StatusOK},
		{name: "expired", claims: jwt.MapClaims{"sub": "svc", "exp": testNow.Unix() - 300}, expected: http.StatusUnauthorized},
		{name: "no expiry", claims: jwt.MapClaims{"sub": "svc"}, expected: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)
			req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
			req.Header.Set("Authorization", "Bearer "+signedJWT(t, tt.claims))

			rec := f.serve(req)
			require.Equal(t, tt.expected, rec.Code)
		})
	}
}

func TestMissingSessionRedirectsToLogout(t *testing.T) {
	f := setup(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/dashboard?tab=2", nil)

	rec := f.serve(req)
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, logoutURL, rec.Header().Get("Location"))
	require.False(t, f.handler.called)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, gate.FailedAuthenticationCookie, cookies[0].Name)
	require.Equal(t, "/dashboard?tab=2", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
}

func TestSessionTokenValid(t *testing.T) {
	identity := &sessions.Identity{UserID: "jo@example.com", Claims: map[string]any{"email": "jo@example.com"}}
	f := setup(t, identity)
	f.tokens.tok = &token.OAuth2Token{ProviderName: testProvider, UserID: identity.UserID, Fields: token.Fields{AccessToken: "stored", ExpiresAt: testNow.Unix() + 600}}

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, gate.SourceSession, f.handler.auth.Source)
	require.Equal(t, "stored", f.handler.auth.Token.AccessToken)

	fromCtx, ok := sessions.IdentityFromContext(f.handler.ctx)
	require.True(t, ok)
	require.Equal(t, identity.UserID, fromCtx.UserID)
}

func TestSessionTokenUnusableRedirects(t *testing.T) {
	f := setup(t, &sessions.Identity{UserID: "jo@example.com"})
	f.tokens.err = fmt.Errorf("%w: %w", autherrors.ErrAuthenticationRequired, autherrors.ErrRefreshFailure)

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, logoutURL, rec.Header().Get("Location"))
	require.False(t, f.handler.called)
}

func TestSessionStorageFailure(t *testing.T) {
	f := setup(t, &sessions.Identity{UserID: "jo@example.com"})
	f.tokens.err = autherrors.Storage("get token", fmt.Errorf("database is down"))

	rec := f.serve(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Header().Get("Location"))
}

func TestStateOutcome(t *testing.T) {
	tests := []struct {
		state    gate.State
		expected gate.Outcome
	}{
		{gate.Whitelisted, gate.Allow},
		{gate.InboundTokenValid, gate.Allow},
		{gate.SessionTokenValid, gate.Allow},
		{gate.InboundTokenExpired, gate.Reject},
		{gate.InboundTokenInvalid, gate.Reject},
		{gate.SessionTokenMissingOrExpired, gate.Redirect},
		{gate.Failed, gate.Fail},
		{gate.Unchecked, gate.Fail},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			require.Equal(t, tt.expected, tt.state.Outcome())
		})
	}
}
