package server

import (
	"testing"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/stretchr/testify/require"
)

func TestUserIDFromClaims(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		field    string
		expected string
		wantErr  bool
	}{
		{name: "string claim", claims: map[string]any{"email": "jo@example.com"}, field: "email", expected: "jo@example.com"},
		{name: "numeric claim", claims: map[string]any{"oid": float64(42)}, field: "oid", expected: "42"},
		{name: "missing claim", claims: map[string]any{"sub": "user-1"}, field: "email", wantErr: true},
		{name: "empty claim", claims: map[string]any{"email": ""}, field: "email", wantErr: true},
		{name: "null claim", claims: map[string]any{"email": nil}, field: "email", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, err := userIDFromClaims(tt.claims, tt.field)
			if tt.wantErr {
				require.ErrorIs(t, err, autherrors.ErrMisconfiguredIdentityField)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, userID)
		})
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, b := generateRandomString(32), generateRandomString(32)
	require.Len(t, a, 43)
	require.NotEqual(t, a, b)
}
