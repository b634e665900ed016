package tokens

import (
	"errors"
)

var (
	ErrLedgerNotInitialized = errors.New("token tracking not initialized")
	ErrInvalidUsage         = errors.New("invalid usage")
	ErrInvalidPurchase      = errors.New("invalid purchase")
	ErrInvalidLimit         = errors.New("monthly limit must be non-negative")
)

// AuthenticationError means no user could be resolved from the caller's session.
type AuthenticationError struct {
	Cause error
}

func (e *AuthenticationError) Error() string {
	if e.Cause == nil {
		return "authentication required"
	}
	return "authentication required: " + e.Cause.Error()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

func IsAuthenticationError(err error) bool {
	var target *AuthenticationError
	return errors.As(err, &target)
}
