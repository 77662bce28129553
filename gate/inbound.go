package gate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
	"github.com/jrsteele09/go-oidc-gate/token"
)

const accessTokenParam = "access_token"

// ExtractInbound finds a credential supplied with the request. The Authorization
// header is checked first, then the form body, then the query string.
func ExtractInbound(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if raw := strings.TrimSpace(parts[1]); raw != "" {
				return raw, true
			}
		}
	}
	if isFormRequest(r) {
		if raw := strings.TrimSpace(r.PostFormValue(accessTokenParam)); raw != "" {
			return raw, true
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get(accessTokenParam)); raw != "" {
		return raw, true
	}
	return "", false
}

func isFormRequest(r *http.Request) bool {
	if r.Body == nil || r.Body == http.NoBody {
		return false
	}
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// ParseInbound turns a raw inbound credential into token fields. Two shapes are
// accepted: a JSON token record carrying expires_at, or a JWT access token whose exp
// claim becomes expires_at. The JWT signature is not checked here; the gate only
// judges freshness and the resource servers called downstream validate the token.
func ParseInbound(raw string) (token.Fields, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var fields token.Fields
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return token.Fields{}, autherrors.Wrapf(err, "%w", autherrors.ErrInvalidInboundToken)
		}
		return fields, nil
	}

	if strings.Count(raw, ".") == 2 {
		claims := jwt.MapClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
			return token.Fields{}, autherrors.Wrapf(err, "%w", autherrors.ErrInvalidInboundToken)
		}
		fields := token.Fields{AccessToken: raw, TokenType: "Bearer"}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return token.Fields{}, autherrors.Wrapf(err, "%w", autherrors.ErrInvalidInboundToken)
		}
		if exp != nil {
			fields.ExpiresAt = exp.Unix()
		}
		if scope, ok := claims["scope"].(string); ok {
			fields.Scope = scope
		}
		return fields, nil
	}

	return token.Fields{}, fmt.Errorf("%w: unrecognised token format", autherrors.ErrInvalidInboundToken)
}
