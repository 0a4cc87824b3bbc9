// Package shared contains the error taxonomy used across all domain packages.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Core taxonomy. Every failure the relay reports falls into one of these.
	ErrResolution = errors.New("resolution error")
	ErrTransport  = errors.New("transport error")
	ErrParse      = errors.New("parse error")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "mentoring", "delivery", "attendance"
	Op      string // Operation that failed, e.g., "GetOrder", "Send"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TAXONOMY CONSTRUCTORS
// ══════════════════════════════════════════════════════════════════════════════

// NewResolutionError reports order, plan or student data that is missing or malformed.
func NewResolutionError(domain, op, message string, cause error) *DomainError {
	return WrapError(domain, op, ErrResolution, message, cause)
}

// NewTransportError reports a collaborator network or auth failure.
func NewTransportError(domain, op, message string, cause error) *DomainError {
	return WrapError(domain, op, ErrTransport, message, cause)
}

// NewParseError reports malformed attendance data.
func NewParseError(domain, op, message string, cause error) *DomainError {
	return WrapError(domain, op, ErrParse, message, cause)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR CHECKING HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if the error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsUnauthorized checks if the error is an authorization error.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsResolution checks if the error is a resolution error.
func IsResolution(err error) bool {
	return errors.Is(err, ErrResolution)
}

// IsTransport checks if the error is a transport error.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsParse checks if the error is a parse error.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}
