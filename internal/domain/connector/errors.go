package connector

import (
	"errors"
	"fmt"
)

// Domain errors for connectors.
var (
	// ErrUnknownRail indicates a rail name outside the closed set.
	ErrUnknownRail = errors.New("unknown rail")

	// ErrNotImplemented indicates a live adapter that has not been built.
	// Live submission fails loudly instead of silently simulating.
	ErrNotImplemented = errors.New("live mode not implemented for rail")

	// ErrAuthFailed indicates the rail rejected the hub's credentials.
	// Never retried automatically: retrying bad credentials can lock the
	// practice out of the network.
	ErrAuthFailed = errors.New("rail authentication failed")

	// ErrForeignExternalID indicates an external id not issued by this rail.
	ErrForeignExternalID = errors.New("external id does not belong to rail")
)

// ValidationError reports a rail-specific precondition failure. Validation
// errors are surfaced synchronously and never retried.
type ValidationError struct {
	Rail   Rail
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s: %s", e.Rail, e.Field, e.Reason)
}

// NewValidationError creates a validation error for one field.
func NewValidationError(rail Rail, field, reason string) *ValidationError {
	return &ValidationError{Rail: rail, Field: field, Reason: reason}
}

// ConfigError reports missing or unusable connector configuration.
// Config errors are never retried; an operator has to fix the setup.
type ConfigError struct {
	Rail   Rail
	OrgID  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("connector config error for org %s rail %s: %s", e.OrgID, e.Rail, e.Reason)
}

// NewConfigError creates a config error.
func NewConfigError(rail Rail, orgID, reason string) *ConfigError {
	return &ConfigError{Rail: rail, OrgID: orgID, Reason: reason}
}

// NetworkError reports a transient transport failure talking to a rail.
// Retried only via the scheduler's backoff, never inline.
type NetworkError struct {
	Rail Rail
	Op   string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error on %s during %s: %v", e.Rail, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error class may be retried by the
// scheduler. Validation, config and auth failures are permanent.
func IsRetryable(err error) bool {
	var ve *ValidationError
	var ce *ConfigError
	if errors.As(err, &ve) || errors.As(err, &ce) {
		return false
	}
	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrNotImplemented) ||
		errors.Is(err, ErrForeignExternalID) || errors.Is(err, ErrUnknownRail) {
		return false
	}
	return true
}
