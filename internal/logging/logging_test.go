package logging_test

import (
	"testing"

	"github.com/jrsteele09/go-oidc-gate/internal/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSetupLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logging.Setup("debug", "PROD")
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	logging.Setup("nonsense", "PROD")
	require.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestRedact(t *testing.T) {
	require.Equal(t, "***", logging.Redact("abc"))
	require.Equal(t, "eyJhbG***", logging.Redact("eyJhbGciOiJSUzI1NiJ9"))
}
