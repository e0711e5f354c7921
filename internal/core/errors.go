// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Configuration errors, fatal at startup only.
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
	ErrLimitsInvalid = &Error{Code: "LIMITS_INVALID", Message: "risk limits failed self-validation"}

	// Degraded input, recovered locally.
	ErrNoFeatures      = &Error{Code: "NO_FEATURES", Message: "feature window missing or empty"}
	ErrStrategyFailed  = &Error{Code: "STRATEGY_FAILED", Message: "strategy generation failed"}
	ErrUnknownStrategy = &Error{Code: "UNKNOWN_STRATEGY", Message: "strategy not configured"}

	// Invalid request: the caller must not submit the order.
	ErrInvalidStop  = &Error{Code: "INVALID_STOP", Message: "stop price invalid for implied direction"}
	ErrInvalidOrder = &Error{Code: "INVALID_ORDER", Message: "order request invalid"}

	// Safety-critical: trading is blocked process-wide.
	ErrTradingHalted = &Error{Code: "TRADING_HALTED", Message: "circuit breaker active"}

	// Internal invariant violations, treated as fatal.
	ErrAccountInvalid = &Error{Code: "ACCOUNT_INVALID", Message: "account state violates invariants"}

	// Lookup misses.
	ErrDecisionNotFound = &Error{Code: "DECISION_NOT_FOUND", Message: "decision not found"}

	// Cold storage failures.
	ErrArchiveIO = &Error{Code: "ARCHIVE_IO", Message: "archive storage operation failed"}
)
