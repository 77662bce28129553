package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common error types for the authentication gate
var (
	// Authentication errors
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrTokenExpiredInbound    = errors.New("inbound token expired")
	ErrInvalidInboundToken    = errors.New("invalid inbound token")
	ErrRefreshFailure         = errors.New("token refresh failed")

	// Storage errors
	ErrStorageFailure = errors.New("token storage failure")
	ErrTokenNotFound  = errors.New("token not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// Login flow errors
	ErrInvalidState               = errors.New("invalid state parameter")
	ErrProviderProtocol           = errors.New("provider protocol error")
	ErrMisconfiguredIdentityField = errors.New("misconfigured identity field")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// MisconfiguredIdentityFieldError is returned by the login callback when the
// configured USER_ID_FIELD claim is missing from the provider's claims.
type MisconfiguredIdentityFieldError struct {
	Field     string
	Available []string
}

// NewMisconfiguredIdentityField builds the error from the claims that were returned.
func NewMisconfiguredIdentityField(field string, claims map[string]any) *MisconfiguredIdentityFieldError {
	available := make([]string, 0, len(claims))
	for k := range claims {
		available = append(available, k)
	}
	sort.Strings(available)
	return &MisconfiguredIdentityFieldError{Field: field, Available: available}
}

func (e *MisconfiguredIdentityFieldError) Error() string {
	return fmt.Sprintf("make sure USER_ID_FIELD matches your OIDC provider: '%s' is not present in the "+
		"response from the OIDC provider. Available keys are: (%s)", e.Field, strings.Join(e.Available, ", "))
}

func (e *MisconfiguredIdentityFieldError) Is(target error) bool {
	return target == ErrMisconfiguredIdentityField
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Storage marks err as a storage failure while keeping the original cause in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
