package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/nestcheck/internal/credential"
	"github.com/roach88/nestcheck/internal/notify"
	"github.com/roach88/nestcheck/internal/report"
	"github.com/roach88/nestcheck/internal/store"
	"github.com/roach88/nestcheck/internal/workflow"
)

// Error codes for CLI output.
const (
	ErrCodeGeneric    = "E001" // Generic/unknown error
	ErrCodeValidation = "E002" // Rejected operator input
	ErrCodeAuth       = "E003" // PIN check failed or missing
	ErrCodeState      = "E004" // Session or step in the wrong state
	ErrCodeStorage    = "E005" // Database failure
	ErrCodeIO         = "E006" // Photo, report or mail failure
	ErrCodeConfig     = "E007" // Process configuration unusable
)

// classify maps an error to its output code and exit code.
func classify(err error) (string, int) {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return ErrCodeGeneric, exitErr.Code
	case workflow.IsValidationError(err),
		errors.Is(err, credential.ErrPinFormat),
		errors.Is(err, credential.ErrPinConfirm),
		notify.IsConfigError(err):
		return ErrCodeValidation, ExitFailure
	case credential.IsAuthError(err), errors.Is(err, credential.ErrGrantRequired):
		return ErrCodeAuth, ExitFailure
	case workflow.IsTransitionError(err),
		workflow.IsActiveSessionError(err),
		errors.Is(err, workflow.ErrNoActiveSession),
		store.IsNotFound(err):
		return ErrCodeState, ExitFailure
	case store.IsStorageError(err):
		return ErrCodeStorage, ExitCommandError
	case workflow.IsIOError(err), report.IsRenderError(err), notify.IsTransportError(err):
		return ErrCodeIO, ExitCommandError
	}
	return ErrCodeGeneric, ExitFailure
}

// fail prints err through the formatter and returns it as an ExitError.
func fail(f *OutputFormatter, err error) error {
	code, exit := classify(err)
	_ = f.Error(code, err.Error(), nil)
	return WrapExitError(exit, code, err)
}

// failConfig reports a configuration or bootstrap failure.
func failConfig(f *OutputFormatter, message string, err error) error {
	_ = f.Error(ErrCodeConfig, fmt.Sprintf("%s: %v", message, err), nil)
	return WrapExitError(ExitCommandError, ErrCodeConfig+": "+message, err)
}
