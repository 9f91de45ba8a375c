package workflow

import (
	"errors"
	"fmt"

	"github.com/roach88/nestcheck/internal/store"
)

// ErrNoActiveSession is returned when an operation needs an active session
// and the referenced one is missing or already closed.
var ErrNoActiveSession = errors.New("no active session")

// ErrCancelled may be returned by a PhotoSource whose operator dismissed the
// picker. AttachPhoto treats it like an empty path.
var ErrCancelled = errors.New("cancelled by operator")

// ValidationError reports missing or malformed operator input.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// TransitionError reports a step status change the state machine forbids.
type TransitionError struct {
	StepID int64
	From   store.StepStatus
	To     store.StepStatus
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("step %d: cannot move from %s to %s", e.StepID, e.From, e.To)
}

// ActiveSessionError is returned by Start when a session is already active.
// The caller decides between Resume and StartReplacing.
type ActiveSessionError struct {
	Existing *store.Session
}

// Error implements the error interface.
func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("session %d for order %q is still active", e.Existing.ID, e.Existing.OrderNo)
}

// IOError reports a failed external capability such as the photo source.
type IOError struct {
	// Capability is "photo", "report" or "email".
	Capability string
	Err        error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Capability, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// IsValidationError returns true if err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransitionError returns true if err is or wraps a *TransitionError.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// IsActiveSessionError returns true if err is or wraps an *ActiveSessionError.
func IsActiveSessionError(err error) bool {
	var ae *ActiveSessionError
	return errors.As(err, &ae)
}

// IsIOError returns true if err is or wraps an *IOError.
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
