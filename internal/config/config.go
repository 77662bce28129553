package config

import (
	"fmt"

	autherrors "github.com/jrsteele09/go-oidc-gate/internal/errors"
)

type Config interface {
	EnvConfig
	OIDCConfig
	GateConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDatabaseURL() string
	GetBaseURL() string
}

type mainConfig struct {
	EnvVars
	OIDC
	Gate
	Session
}

func New() Config {
	return mainConfig{}
}

// Validate fails when one of the settings the provider client cannot run without is empty.
func Validate(c Config) error {
	required := map[string]string{
		"CLIENT_ID":     c.GetClientID(),
		"CLIENT_SECRET": c.GetClientSecret(),
		"CONFIG_URL":    c.GetConfigURL(),
	}
	for _, key := range []string{"CLIENT_ID", "CLIENT_SECRET", "CONFIG_URL"} {
		if required[key] == "" {
			return fmt.Errorf("%w: %s is required and can not be empty", autherrors.ErrInvalidConfig, key)
		}
	}
	if c.GetUserIDField() == "" {
		return fmt.Errorf("%w: USER_ID_FIELD can not be empty", autherrors.ErrInvalidConfig)
	}
	return nil
}
