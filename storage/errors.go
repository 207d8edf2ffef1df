package storage

import (
	"errors"
	"fmt"
)

// ErrorType classifies a storage error
type ErrorType string

const (
	TypeNotFound      ErrorType = "not_found"
	TypeAlreadyExists ErrorType = "already_exists"
	TypeInvalidInput  ErrorType = "invalid_input"
	TypeConstraint    ErrorType = "constraint"
)

var (
	// ErrNotFound is returned when a requested entry or collection doesn't exist
	ErrNotFound = errors.New("resource not found")
	// ErrAlreadyExists is returned when inserting a row whose id is taken
	ErrAlreadyExists = errors.New("resource already exists")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input parameters")
	// ErrConstraint is returned when a write violates a constraint, e.g. updating an unknown id
	ErrConstraint = errors.New("constraint violation")
)

var sentinels = map[ErrorType]error{
	TypeNotFound:      ErrNotFound,
	TypeAlreadyExists: ErrAlreadyExists,
	TypeInvalidInput:  ErrInvalidInput,
	TypeConstraint:    ErrConstraint,
}

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error belonging to the error's type, so that
// errors.Is(err, storage.ErrNotFound) works for every backend.
func (e *Error) Is(target error) bool {
	return sentinels[e.Type] == target
}

// NewError builds an *Error of the given type.
func NewError(typ ErrorType, message string, cause error) *Error {
	return &Error{Type: typ, Message: message, Err: cause}
}

// IsNotFound reports whether err denotes a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
