package calc

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's closed error taxonomy. Every error
// the engine itself raises unwraps to exactly one of these; an error
// returned by a rule's own function is passed back unchanged.
var (
	ErrFutureNotDone   = errors.New("future not done")
	ErrTaskHasNotRun   = errors.New("task has not run")
	ErrTaskIsDone      = errors.New("task is done")
	ErrNoActiveSession = errors.New("no active session")
	ErrArgNotInSession = errors.New("argument not in session")
	ErrHashing         = errors.New("hashing error")
	ErrComposite       = errors.New("composite error")
)

// TaskError attaches contextual detail to one of the sentinel errors
// above while remaining matchable with errors.Is.
type TaskError struct {
	Kind error
	Msg  string
}

func (e *TaskError) Error() string {
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *TaskError) Unwrap() error { return e.Kind }

func wrap(kind error, format string, args ...any) error {
	return &TaskError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
