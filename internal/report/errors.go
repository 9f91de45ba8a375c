package report

import (
	"errors"
	"fmt"
)

// RenderError reports a failed document generation. No file is left behind
// and no report should be registered.
type RenderError struct {
	// Stage is one of "input", "prepare", "images", "write".
	Stage string
	Err   error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("render report: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *RenderError) Unwrap() error { return e.Err }

// IsRenderError returns true if err is or wraps a *RenderError.
func IsRenderError(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}
