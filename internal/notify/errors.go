package notify

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports an incomplete or invalid delivery configuration.
// It is never worth retrying without changing the configuration.
type ConfigError struct {
	// Missing lists setting keys that are absent or invalid.
	Missing []string

	// Err is set when a present value was rejected, e.g. a bad address.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("e-mail config: %v", e.Err)
	}
	return fmt.Sprintf("e-mail config incomplete: missing %s", strings.Join(e.Missing, ", "))
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError reports a failure talking to the mail server or reading
// the attachment.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("e-mail %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error { return e.Err }

// IsConfigError returns true if err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsTransportError returns true if err is or wraps a *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
