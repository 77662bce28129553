package config

import (
	"fmt"
	"strings"
	"time"
)

type OIDCConfig interface {
	GetProviderName() string
	IsKnownProvider() bool
	GetConfigURL() string
	GetIssuerURL() string
	GetClientID() string
	GetClientSecret() string
	GetScopes() []string
	GetScheme() string
	GetUserIDField() string
	GetAuthStateTimeout() time.Duration
}

const discoverySuffix = "/.well-known/openid-configuration"

// Providers this gate has been run against.
var knownProviders = map[string]struct{}{
	"google":   {},
	"azure":    {},
	"okta":     {},
	"keycloak": {},
}

type OIDC struct{}

var _ OIDCConfig = OIDC{}

func (OIDC) GetProviderName() string {
	return strings.ToLower(GetEnv("OIDC_PROVIDER", "google"))
}

func (o OIDC) IsKnownProvider() bool {
	_, ok := knownProviders[o.GetProviderName()]
	return ok
}

func (OIDC) GetConfigURL() string {
	return GetEnv("CONFIG_URL", "")
}

// GetIssuerURL is CONFIG_URL without the discovery document suffix, which is what
// go-oidc expects.
func (o OIDC) GetIssuerURL() string {
	return strings.TrimSuffix(strings.TrimSuffix(o.GetConfigURL(), "/"), discoverySuffix)
}

// GetClientID prefers the provider specific variable, e.g. GOOGLE_CLIENT_ID.
func (o OIDC) GetClientID() string {
	return o.providerValue("CLIENT_ID")
}

func (o OIDC) GetClientSecret() string {
	return o.providerValue("CLIENT_SECRET")
}

func (o OIDC) providerValue(key string) string {
	specific := fmt.Sprintf("%s_%s", strings.ToUpper(o.GetProviderName()), key)
	return GetEnv(specific, GetEnv(key, ""))
}

func (OIDC) GetScopes() []string {
	return strings.Fields(strings.ReplaceAll(GetEnv("OIDC_SCOPES", "openid email profile"), ",", " "))
}

func (OIDC) GetScheme() string {
	return GetEnv("SCHEME", "http")
}

func (OIDC) GetUserIDField() string {
	return GetEnv("USER_ID_FIELD", "email")
}

func (OIDC) GetAuthStateTimeout() time.Duration {
	return 15 * time.Minute
}
