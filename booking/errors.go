package booking

import (
	"errors"
	"fmt"

	"lab_manager/model"
)

// Kind classifies an expected booking failure. Callers map kinds to client messages.
type Kind string

const (
	KindValidation          Kind = "VALIDATION_ERROR"
	KindInvalidRange        Kind = "INVALID_RANGE"
	KindInPast              Kind = "IN_PAST"
	KindResourceNotFound    Kind = "RESOURCE_NOT_FOUND"
	KindResourceInactive    Kind = "RESOURCE_INACTIVE"
	KindResourceUnavailable Kind = "RESOURCE_UNAVAILABLE"
	KindConflict            Kind = "CONFLICT"
	KindIllegalTransition   Kind = "ILLEGAL_TRANSITION"
	KindForbidden           Kind = "FORBIDDEN"
	KindAlreadyTerminal     Kind = "ALREADY_TERMINAL"
	KindNotFound            Kind = "NOT_FOUND"
	KindLockTimeout         Kind = "LOCK_TIMEOUT"
)

// Error is returned for every condition a caller can recover from. Anything else coming out of
// the service is an infrastructure failure.
type Error struct {
	Kind    Kind
	Message string

	// Populated for KindConflict.
	ConflictID uint
	Conflict   *Interval
}

func (e *Error) Error() string {
	switch {
	case e.Conflict != nil:
		return fmt.Sprintf("%s: %s (booking %d holds %s)", e.Kind, e.Message, e.ConflictID, e.Conflict)
	case e.Message == "":
		return string(e.Kind)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) holds for detailed errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrInvalidRange        = &Error{Kind: KindInvalidRange}
	ErrInPast              = &Error{Kind: KindInPast}
	ErrResourceNotFound    = &Error{Kind: KindResourceNotFound}
	ErrResourceInactive    = &Error{Kind: KindResourceInactive}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrIllegalTransition   = &Error{Kind: KindIllegalTransition}
	ErrForbidden           = &Error{Kind: KindForbidden}
	ErrAlreadyTerminal     = &Error{Kind: KindAlreadyTerminal}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrLockTimeout         = &Error{Kind: KindLockTimeout}
)

// ErrNoRecord is returned by Store and Tx implementations when a lookup matches nothing.
var ErrNoRecord = errors.New("record not found")

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func conflictError(existing *model.Booking) *Error {
	iv := IntervalOf(existing)
	return &Error{
		Kind:       KindConflict,
		Message:    "the requested time overlaps an existing booking",
		ConflictID: existing.ID,
		Conflict:   &iv,
	}
}

// LockTimeoutError reports that the lock guarding what could not be acquired in time.
func LockTimeoutError(what string) *Error {
	return newError(KindLockTimeout, "timed out waiting for lock on %s", what)
}

// DuplicateError reports a write rejected by a uniqueness rule named constraint.
func DuplicateError(constraint string) *Error {
	return newError(KindConflict, "duplicate request rejected by %s", constraint)
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
