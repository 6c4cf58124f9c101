package services

import "errors"

// Domain error taxonomy. Operations wrap these with context via %w; the HTTP
// layer maps them to status codes with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")

	// ErrNoPendingWork is a validation error: a run needs at least one
	// PENDING instance.
	ErrNoPendingWork = validationError("no pending instances to generate")
	// ErrRunAlreadyInProgress is a conflict: the configuration already has a
	// QUEUED or RUNNING run.
	ErrRunAlreadyInProgress = conflictError("a generation run is already in progress")
	// ErrInvalidTransition is a conflict: the configuration's state does not
	// allow the requested operation.
	ErrInvalidTransition = conflictError("operation not allowed in the configuration's current state")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string        { return e.msg }
func (e *kindError) Is(target error) bool { return target == e.kind }

func validationError(msg string) error { return &kindError{msg: msg, kind: ErrValidation} }
func conflictError(msg string) error   { return &kindError{msg: msg, kind: ErrConflict} }

// Worker relay errors.
var (
	ErrRateLimited       = errors.New("too many worker triggers")
	ErrWorkerUnavailable = errors.New("generation worker unavailable")
)
