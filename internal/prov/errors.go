package prov

import (
	"errors"
	"fmt"
)

// Error is the error type shared by the diff engine, the applier and the
// store adapters.
//
// Error includes structured fields for diagnostics and retry decisions.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// RecordID identifies the record being reconciled, if known.
	RecordID string

	// Entity names the node id or edge key involved, if any.
	Entity string

	// Applied is the number of actions that succeeded before a partial
	// apply failure.
	Applied int

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	// ErrCodePrecondition indicates old and new graphs belong to different records.
	ErrCodePrecondition ErrorCode = "PRECONDITION"

	// ErrCodeNotFound indicates an action referenced a missing node or edge.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeStoreUnavailable indicates a transport or connection failure.
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"

	// ErrCodePartialApply indicates an action failed after earlier actions
	// in the same pass succeeded.
	ErrCodePartialApply ErrorCode = "PARTIAL_APPLY"

	// ErrCodeInvalidGraph indicates a logical graph violates its invariants.
	ErrCodeInvalidGraph ErrorCode = "INVALID_GRAPH"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RecordID != "" {
		msg = fmt.Sprintf("%s (record=%s)", msg, e.RecordID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	for err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Err
	}
	return false
}

// CodeOf returns the code of the outermost *Error in the chain, or "".
func CodeOf(err error) ErrorCode {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// IsPrecondition reports whether err (or any wrapped cause) is a precondition error.
func IsPrecondition(err error) bool { return hasCode(err, ErrCodePrecondition) }

// IsNotFound reports whether err (or any wrapped cause) is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsStoreUnavailable reports whether err (or any wrapped cause) is a transport failure.
func IsStoreUnavailable(err error) bool { return hasCode(err, ErrCodeStoreUnavailable) }

// IsPartialApply reports whether err is a partial apply failure.
func IsPartialApply(err error) bool { return hasCode(err, ErrCodePartialApply) }

// IsInvalidGraph reports whether err (or any wrapped cause) is a graph validation failure.
func IsInvalidGraph(err error) bool { return hasCode(err, ErrCodeInvalidGraph) }

// NewPreconditionError reports mismatched record ids.
func NewPreconditionError(oldRecord, newRecord string) *Error {
	return &Error{
		Code:     ErrCodePrecondition,
		Message:  fmt.Sprintf("old graph belongs to %q but new graph belongs to %q", oldRecord, newRecord),
		RecordID: newRecord,
	}
}

// NewNotFoundError reports a missing node or edge.
func NewNotFoundError(kind, entity string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s %s not found", kind, entity),
		Entity:  entity,
	}
}

// NewStoreUnavailableError wraps a transport failure.
func NewStoreUnavailableError(op string, err error) *Error {
	return &Error{
		Code:    ErrCodeStoreUnavailable,
		Message: op,
		Err:     err,
	}
}

// NewPartialApplyError wraps the failure of one action after applied successes.
func NewPartialApplyError(recordID, entity string, applied int, err error) *Error {
	return &Error{
		Code:     ErrCodePartialApply,
		Message:  fmt.Sprintf("action on %s failed after %d applied actions", entity, applied),
		RecordID: recordID,
		Entity:   entity,
		Applied:  applied,
		Err:      err,
	}
}

// NewInvalidGraphError reports a violated graph invariant.
func NewInvalidGraphError(recordID, message string) *Error {
	return &Error{
		Code:     ErrCodeInvalidGraph,
		Message:  message,
		RecordID: recordID,
	}
}
