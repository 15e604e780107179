package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation  = errors.New("validation error")
	ErrBinding     = errors.New("binding error")
	ErrConflict    = errors.New("conflict")
	ErrTransaction = errors.New("transaction error")
	ErrDriver      = errors.New("driver error")
)

// BindingError describes a placeholder/parameter mismatch or a value that cannot be bound.
// Missing lists placeholders without a parameter; Param names a single rejected parameter.
type BindingError struct {
	Missing []string
	Param   string
	Reason  string
}

func (e *BindingError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return fmt.Sprintf("binding error: missing parameters for placeholders: %s", strings.Join(e.Missing, ", "))
	case e.Param != "":
		return fmt.Sprintf("binding error: parameter %s: %s", e.Param, e.Reason)
	default:
		return "binding error: " + e.Reason
	}
}

func (e *BindingError) Is(target error) bool {
	return target == ErrBinding
}

// DriverError wraps a failure reported by the underlying database driver.
type DriverError struct {
	Op  string // connect, prepare, execute, ...
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error during %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

func (e *DriverError) Is(target error) bool {
	return target == ErrDriver
}

// Validation returns an error wrapping ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Driver wraps err as a DriverError for op. Returns nil for a nil err.
func Driver(op string, err error) error {
	if err == nil {
		return nil
	}
	return &DriverError{Op: op, Err: err}
}
