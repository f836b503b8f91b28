package provisioner

import (
	"errors"
	"fmt"
)

// Error represents a provisioning error with categorization.
// The Code carries the error kind; callers switch on it (or use the Is* helpers)
// to map failures onto transport responses.
type Error struct {
	// Code is a machine-readable error kind
	Code string

	// Message is a human-readable detail string
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for provisioning operations.
const (
	// ErrCodeConflict indicates a queue or exchange name is already taken,
	// detected either by the store gate or by the broker itself.
	ErrCodeConflict = "CONFLICT"

	// ErrCodeNotFound indicates the targeted subscription, adapter or catalogue entity does not exist.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeInvalidCatalogueData indicates a catalogue record lacks fields routing depends on.
	ErrCodeInvalidCatalogueData = "INVALID_CATALOGUE_DATA"

	// ErrCodeBroker indicates a broker call failed for reasons other than conflict or absence.
	ErrCodeBroker = "BROKER_ERROR"

	// ErrCodePersistence indicates a metadata store call failed.
	ErrCodePersistence = "PERSISTENCE_ERROR"

	// ErrCodeInternal indicates an uncategorized failure.
	ErrCodeInternal = "INTERNAL_ERROR"

	// ErrCodeValidation indicates request validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid service configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
)

// Common errors.
var (
	// ErrNotFound is returned by store mutations and broker deletions that target a missing key.
	ErrNotFound = &Error{
		Code:    ErrCodeNotFound,
		Message: "not found",
	}

	// ErrConflict is returned by the broker when a queue or exchange already exists.
	ErrConflict = &Error{
		Code:    ErrCodeConflict,
		Message: "already exists",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the code of the outermost *Error in err's chain,
// or ErrCodeInternal when err carries no categorization.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsConflict checks if err is a conflict, whichever layer reported it.
func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

// IsNotFound checks if err reports a missing subscription, adapter or entity.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidCatalogueData checks if err reports unusable catalogue data.
func IsInvalidCatalogueData(err error) bool {
	return hasCode(err, ErrCodeInvalidCatalogueData)
}

// hasCode walks the whole chain so that a categorized cause wrapped by an
// outer saga error is still recognized.
func hasCode(err error, code string) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// keepKind passes categorized errors through untouched and wraps anything else under code.
// Used at every gateway boundary so broker and store conflicts surface with the same kind.
func keepKind(err error, code, message string) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return NewErrorWithCause(code, message, err)
}
