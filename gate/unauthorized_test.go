package gate_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-oidc-gate/gate"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestRedirectUnauthorized(t *testing.T) {
	mw := gate.RedirectUnauthorized(logoutURL)

	t.Run("401 becomes a redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "token revoked", http.StatusUnauthorized)
		})(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, logoutURL, rec.Header().Get("Location"))
		require.NotContains(t, rec.Body.String(), "token revoked")
	})

	t.Run("other responses pass through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mw(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		})(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "ok", rec.Body.String())
	})
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		location string
		body     string
	}{
		{name: "no error", err: nil, status: http.StatusOK},
		{name: "authentication required", err: fmt.Errorf("fetch: %w", autherrors.ErrAuthenticationRequired), status: http.StatusFound, location: logoutURL},
		{name: "session expired", err: autherrors.ErrSessionExpired, status: http.StatusFound, location: logoutURL},
		{name: "invalid state", err: autherrors.ErrInvalidState, status: http.StatusBadRequest},
		{
			name:   "misconfigured identity field",
			err:    autherrors.NewMisconfiguredIdentityField("email", map[string]any{"sub": "user-1"}),
			status: http.StatusInternalServerError,
			body:   "'email' is not present",
		},
		{
			name:   "wrapped misconfigured identity field",
			err:    autherrors.Wrapf(autherrors.NewMisconfiguredIdentityField("email", map[string]any{"sub": "user-1"}), "[server Callback] identity token"),
			status: http.StatusInternalServerError,
			body:   "'email' is not present",
		},
		{name: "wrapped invalid state", err: autherrors.Wrapf(autherrors.ErrInvalidState, "[server Callback] %s", "state lookup"), status: http.StatusBadRequest},
		{name: "wrapped storage failure", err: autherrors.Wrapf(autherrors.Storage("save token", errors.New("disk full")), "[server Callback] store token"), status: http.StatusInternalServerError, body: "Internal Server Error"},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError, body: "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			gate.Handle(logoutURL, func(w http.ResponseWriter, r *http.Request) error {
				return tt.err
			})(rec, httptest.NewRequest(http.MethodGet, "/auth", nil))

			require.Equal(t, tt.status, rec.Code)
			require.Equal(t, tt.location, rec.Header().Get("Location"))
			require.Contains(t, rec.Body.String(), tt.body)
			require.NotContains(t, rec.Body.String(), "boom")
		})
	}
}

func TestPopFailedAuthenticationURL(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		wantOK bool
	}{
		{name: "local path", value: "/dashboard", wantOK: true},
		{name: "protocol relative", value: "//evil.example.com/x", wantOK: false},
		{name: "absolute", value: "https://evil.example.com", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth", nil)
			req.AddCookie(&http.Cookie{Name: gate.FailedAuthenticationCookie, Value: tt.value})
			rec := httptest.NewRecorder()

			target, ok := gate.PopFailedAuthenticationURL(rec, req)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				require.Equal(t, tt.value, target)
			}

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			require.Equal(t, -1, cookies[0].MaxAge)
			require.True(t, cookies[0].Expires.Before(time.Now()))
		})
	}

	_, ok := gate.PopFailedAuthenticationURL(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/auth", nil))
	require.False(t, ok)
}
