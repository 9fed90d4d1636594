package core

import (
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError is returned on malformed or missing input.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "invalid request"
	}
	return err.Err.Error()
}

// IsValidationError reports whether err was caused by invalid input,
// either caught by a validator tag or by a service rule.
func IsValidationError(err error) bool {
	switch errors.Cause(err).(type) {
	case *ValidationError, validator.ValidationErrors:
		return true
	}
	return false
}

// AuthenticationError is returned when a credential is missing or invalid.
type AuthenticationError struct {
	msg string
}

func NewAuthenticationError(msg string) error { return &AuthenticationError{msg} }

func (err AuthenticationError) Error() string { return err.msg }

// PermissionError is returned when a valid principal lacks the rights for an action.
type PermissionError struct {
	msg string
}

func NewPermissionError(msg string) error { return &PermissionError{msg} }

func (err PermissionError) Error() string { return err.msg }

func IsPermissionError(err error) bool {
	_, ok := errors.Cause(err).(*PermissionError)
	return ok
}

// NotFoundError is returned when a referenced entity does not exist.
type NotFoundError struct {
	msg string
}

func NewNotFoundError(msg string) error { return &NotFoundError{msg} }

func (err NotFoundError) Error() string { return err.msg }

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ConflictError is returned when a request is well-formed but the current state forbids it.
type ConflictError struct {
	msg string
}

func NewConflictError(msg string) error { return &ConflictError{msg} }

func (err ConflictError) Error() string { return err.msg }

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
