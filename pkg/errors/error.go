// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories that decide how a run reacts:
//   - General errors (1-99): Unknown and general errors
//   - Configuration errors (100-199): invalid cost rates, zero-length data, malformed split windows.
//     Raised before any simulation starts.
//   - Data errors (200-299): gaps, non-monotonic timestamps, missing OHLC fields, query failures
//   - Simulation errors (300-399): per-bar sizing or cost-model failures. Continuable, the bar
//     is treated as "no trade".
//   - Strategy errors (400-499): failures inside a strategy's decision function. Fatal to the run.
//   - Result errors (500-599): persisting or loading backtest results
//   - Validation errors (600-699): walk-forward and Monte Carlo preconditions
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeDataGap, "gap before bar %d", index)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to execute query", originalErr)
//
//	// Decide whether a run may continue
//	if errors.IsContinuable(err) { ... }
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeDataNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// CategoryOfError returns the category of err's code, or CategoryUnknown for foreign errors.
func CategoryOfError(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return CategoryOf(e.Code)
	}

	return CategoryUnknown
}

// IsConfigurationError reports whether err must abort before a simulation starts.
func IsConfigurationError(err error) bool {
	return CategoryOfError(err) == CategoryConfiguration
}

// IsDataError reports whether err was caused by malformed historical data.
func IsDataError(err error) bool {
	return CategoryOfError(err) == CategoryData
}

// IsContinuable reports whether err is a per-bar failure after which the run may continue.
func IsContinuable(err error) bool {
	return CategoryOfError(err) == CategorySimulation
}

// IsStrategyError reports whether err came from a strategy and is fatal to the run.
func IsStrategyError(err error) bool {
	return CategoryOfError(err) == CategoryStrategy
}

// InsufficientDataError represents an error when there is not enough data
// for a calculation (e.g., a walk-forward schedule that does not fit the series).
type InsufficientDataError struct {
	Required int    // Minimum data points required
	Actual   int    // Actual data points available
	Symbol   string // Optional: symbol context
	Message  string // Human-readable message
}

// NewInsufficientDataErrorf creates a new InsufficientDataError with a formatted message.
func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return &InsufficientDataError{
		Required: required,
		Actual:   actual,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *InsufficientDataError) Error() string {
	return e.Message
}

// IsInsufficientDataError checks if an error is an InsufficientDataError.
// It uses errors.As to check the error chain.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}
