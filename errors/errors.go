// Package errors provides error handling for lexgen.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for CLI presentation
//
// Usage:
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrUnresolvedReference) {
//	    // handle dangling ref
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
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Compiler error taxonomy. Every failure the pipeline can produce is one of
// these sentinels, wrapped with document/def/ref context. All are terminal:
// the first one aborts the run with no partial output.
var (
	// ErrMalformedDocument indicates a lexicon file with invalid structure
	// or missing required top-level fields (version marker, id, defs).
	ErrMalformedDocument = New("malformed lexicon document")

	// ErrDuplicateDocument indicates two loaded documents share an NSID.
	ErrDuplicateDocument = New("duplicate lexicon document")

	// ErrUnresolvedReference indicates a ref whose target does not exist
	// in the loaded document set.
	ErrUnresolvedReference = New("unresolved reference")

	// ErrNameCollision indicates two distinct defs allocated the same
	// generated type name.
	ErrNameCollision = New("generated name collision")

	// ErrUnsupportedKind indicates a definition kind or kind/position
	// combination the compiler does not recognize.
	ErrUnsupportedKind = New("unsupported definition kind")
)

// IsMalformedDocument checks if an error is or wraps ErrMalformedDocument.
func IsMalformedDocument(err error) bool {
	return err != nil && Is(err, ErrMalformedDocument)
}

// IsDuplicateDocument checks if an error is or wraps ErrDuplicateDocument.
func IsDuplicateDocument(err error) bool {
	return err != nil && Is(err, ErrDuplicateDocument)
}

// IsUnresolvedReference checks if an error is or wraps ErrUnresolvedReference.
func IsUnresolvedReference(err error) bool {
	return err != nil && Is(err, ErrUnresolvedReference)
}

// IsNameCollision checks if an error is or wraps ErrNameCollision.
func IsNameCollision(err error) bool {
	return err != nil && Is(err, ErrNameCollision)
}

// IsUnsupportedKind checks if an error is or wraps ErrUnsupportedKind.
func IsUnsupportedKind(err error) bool {
	return err != nil && Is(err, ErrUnsupportedKind)
}
