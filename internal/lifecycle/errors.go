package lifecycle

import (
	"errors"
	"fmt"
)

// Code classifies lifecycle failures.
type Code string

const (
	// CodeNoOrganizationIdentifier: the input carries no domain, website or name.
	CodeNoOrganizationIdentifier Code = "NoOrganizationIdentifier"
	// CodeRunNotFound: no run_artifact exists for the run id.
	CodeRunNotFound Code = "RunNotFound"
	// CodeStorage: the artifact store failed; the cause is wrapped unchanged.
	CodeStorage Code = "StorageError"
	// CodeInvalidTransition: the status change leaves a terminal state or moves
	// backward.
	CodeInvalidTransition Code = "InvalidStatusTransition"
)

// Error is the typed failure of every lifecycle operation.
type Error struct {
	Code  Code
	Op    string
	RunID string
	Err   error
}

// Sentinels for errors.Is; they match any *Error with the same code.
var (
	ErrNoOrganizationIdentifier = &Error{Code: CodeNoOrganizationIdentifier}
	ErrRunNotFound              = &Error{Code: CodeRunNotFound}
	ErrStorage                  = &Error{Code: CodeStorage}
	ErrInvalidTransition        = &Error{Code: CodeInvalidTransition}
)

func (e *Error) Error() string {
	if e == nil {
		return "lifecycle error"
	}
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.RunID != "" {
		msg += fmt.Sprintf(" (run %s)", e.RunID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the lifecycle code carried by err, or "" when err is not one.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}
