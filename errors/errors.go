// Package errors provides error handling for metakeep.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrItemNotFound) {
//	    // handle unknown meta item
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Assertions and panics
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the metakeep core.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = New("not found")

	// ErrItemNotFound indicates an unknown meta item code
	ErrItemNotFound = Wrap(ErrNotFound, "meta item not found")

	// ErrEntityNotFound indicates a versioned entity (code, term) does not exist
	ErrEntityNotFound = Wrap(ErrNotFound, "entity not found")

	// ErrReferenceNotFound indicates a referenced code or term could not be resolved
	ErrReferenceNotFound = New("reference not found")

	// ErrValidation indicates the request was malformed or conflicts with item configuration
	ErrValidation = New("validation conflict")

	// ErrTypeMismatch indicates a tagged value whose type differs from the item's configured kind
	ErrTypeMismatch = Wrap(ErrValidation, "type mismatch")

	// ErrSelectionModeMismatch indicates a taxonomy write whose selection mode
	// differs from the item's configured mode
	ErrSelectionModeMismatch = Wrap(ErrValidation, "selection mode mismatch")

	// ErrNoActiveTransaction indicates a component asked for a transaction
	// handle outside any unit-of-work scope. This is a programming error in
	// the caller, never a user-facing condition.
	ErrNoActiveTransaction = New("no active transaction")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound.
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsValidationError checks if an error is or wraps ErrValidation.
// ErrReferenceNotFound maps to the same caller-fault class even though it is
// a distinct sentinel carrying the offending key.
func IsValidationError(err error) bool {
	return err != nil && (Is(err, ErrValidation) || Is(err, ErrReferenceNotFound))
}

// IsProgrammingError checks if an error indicates collaborator misuse rather
// than bad input or storage failure.
func IsProgrammingError(err error) bool {
	return err != nil && Is(err, ErrNoActiveTransaction)
}

// NewItemNotFound creates an item-not-found error carrying the item code.
func NewItemNotFound(itemCode string) error {
	return Wrapf(ErrItemNotFound, "item %q", itemCode)
}

// NewReferenceNotFound creates a reference-not-found error carrying the
// offending key or identifier.
func NewReferenceNotFound(kind, keyOrID string) error {
	return Wrapf(ErrReferenceNotFound, "%s %q", kind, keyOrID)
}
