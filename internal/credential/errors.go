package credential

import (
	"errors"
	"fmt"
	"time"
)

// AuthErrorKind categorizes credential check failures.
type AuthErrorKind string

const (
	// KindNotConfigured means no credential is stored for the role. Callers
	// must surface this distinctly, never treat it as a plain denial.
	KindNotConfigured AuthErrorKind = "not_configured"

	// KindMismatch means the supplied PIN did not match.
	KindMismatch AuthErrorKind = "mismatch"

	// KindLockedOut means too many consecutive mismatches; retry after Until.
	KindLockedOut AuthErrorKind = "locked_out"

	// KindNameRequired means a master check was attempted without an author name.
	KindNameRequired AuthErrorKind = "name_required"
)

// AuthError reports a failed credential check.
type AuthError struct {
	// Role is the role whose credential was checked.
	Role Role

	// Kind identifies the failure.
	Kind AuthErrorKind

	// Until is set for KindLockedOut.
	Until time.Time
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch e.Kind {
	case KindNotConfigured:
		return fmt.Sprintf("%s PIN is not configured", e.Role)
	case KindMismatch:
		return fmt.Sprintf("wrong %s PIN", e.Role)
	case KindLockedOut:
		return fmt.Sprintf("%s PIN locked until %s", e.Role, e.Until.Format(time.DateTime))
	case KindNameRequired:
		return fmt.Sprintf("%s name is required", e.Role)
	}
	return fmt.Sprintf("%s: %s", e.Role, e.Kind)
}

func isKind(err error, kind AuthErrorKind) bool {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// IsNotConfigured returns true if err is an AuthError of kind not_configured.
func IsNotConfigured(err error) bool { return isKind(err, KindNotConfigured) }

// IsMismatch returns true if err is an AuthError of kind mismatch.
func IsMismatch(err error) bool { return isKind(err, KindMismatch) }

// IsLockedOut returns true if err is an AuthError of kind locked_out.
func IsLockedOut(err error) bool { return isKind(err, KindLockedOut) }

// IsAuthError returns true if err is or wraps an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ErrGrantRequired is returned when an operation needs a grant for a role the
// caller did not present.
var ErrGrantRequired = errors.New("authorization required")

// ErrPinFormat is returned when a new PIN is not 4 to 8 digits.
var ErrPinFormat = errors.New("PIN must be 4 to 8 digits")

// ErrPinConfirm is returned when the two entries of a new PIN differ.
var ErrPinConfirm = errors.New("PIN entries do not match")
