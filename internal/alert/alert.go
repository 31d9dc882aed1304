// Package alert carries failures that must be shown to the user as a
// blocking alert rather than inline form state.
package alert

import "errors"

// Error pairs a user-facing message with the underlying cause.
type Error struct {
	Message string
	Err     error
}

// New wraps err with a user-facing alert message.
func New(message string, err error) *Error {
	return &Error{Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// MessageOf returns the alert message carried by err, if any.
func MessageOf(err error) (string, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message, true
	}
	return "", false
}
