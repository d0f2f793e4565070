package msgbus

import (
	"errors"
	"fmt"
)

// Sentinel errors for registration.
var (
	// ErrNilCallback indicates a nil callback or interceptor was registered.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrNilHandler indicates a registration without a MessageHandler.
	ErrNilHandler = errors.New("message handler cannot be nil")

	// ErrNilToken indicates a registration against a nil Token.
	ErrNilToken = errors.New("registration token cannot be nil")
)

// RegistrationError wraps a rejected registration with its context.
type RegistrationError struct {
	// Mode is the addressing mode of the rejected registration.
	Mode Mode
	// Interceptor is true when an interceptor was rejected.
	Interceptor bool
	// Type is the message type name.
	Type string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	what := "handler"
	if e.Interceptor {
		what = "interceptor"
	}
	return fmt.Sprintf("register %s %s for %s: %v", e.Mode, what, e.Type, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RegistrationError) Unwrap() error {
	return e.Err
}
