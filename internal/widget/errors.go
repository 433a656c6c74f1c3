package widget

import "fmt"

// MsgValidationFailed is shown when a form post fails without a more specific reason.
const MsgValidationFailed = "Your request could not be completed. Please check the form and try again."

// NotFoundError means no implementation (or no entry point for the verb) exists.
type NotFoundError struct {
	Name string
	Verb Verb
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("widget not found: %s (%s)", e.Name, e.Verb)
}

// ValidationError is returned by a widget to show Message to the user as-is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Invalid is shorthand for returning a user-facing validation error.
func Invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ExecutionError wraps a failure (error or panic) inside a widget body.
type ExecutionError struct {
	Name string
	Verb Verb
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("widget %s.%s: %v", e.Name, e.Verb, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
