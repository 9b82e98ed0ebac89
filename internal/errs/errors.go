// Package errs provides the unified error type used across all of askdb.
//
// Every subsystem (database, session, nl2sql, query, audit, …) wraps its native
// errors into *errs.Error before returning them to callers. Callers use the
// Is* predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "query failed", mysqlErr)
//
//	// In a handler, check the error kind:
//	if errs.IsNotConnected(err) {
//	    writeFailure(w, http.StatusBadRequest, "Not connected")
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (MySQL, Postgres, the model providers, MinIO, …) map their
// native errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotConnected             // no live database connection
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindGenerationFailed         // model call failed or returned nothing
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindRejected                 // statement refused before execution
	ErrKindInvalidInput             // bad arguments from the caller
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotConnected:
		return "not_connected"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindGenerationFailed:
		return "generation_failed"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindRejected:
		return "rejected"
	case ErrKindInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all askdb subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotConnected reports whether err was raised because no database
// connection is live.
func IsNotConnected(err error) bool {
	return kindOf(err) == ErrKindNotConnected
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsGenerationFailed reports whether err came from the text-generation model.
func IsGenerationFailed(err error) bool {
	return kindOf(err) == ErrKindGenerationFailed
}

// IsQueryFailed reports whether err is a backend operation failure
// (SQL execution error, storage I/O error, …).
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsRejected reports whether a statement was refused before it reached the database.
func IsRejected(err error) bool {
	return kindOf(err) == ErrKindRejected
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// Kind returns the ErrKind of the first *Error in err's chain.
func Kind(err error) ErrKind {
	return kindOf(err)
}

// Message returns the text that should be shown to an API caller. For a
// wrapped driver or model error that is the innermost cause's message,
// passed through verbatim; otherwise the *Error's own message.
//
// A rejected statement keeps its own message in front of the cause, so the
// caller sees why it was refused and not only where a parser stopped.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	if e.Cause == nil {
		return e.Message
	}
	if e.Kind == ErrKindRejected && e.Message != "" {
		return e.Message + ": " + Message(e.Cause)
	}
	return Message(e.Cause)
}

// kindOf extracts the ErrKind from any error in the chain.
func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
