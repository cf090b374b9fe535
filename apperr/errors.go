package apperr

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Error categories used across the application
var (
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrConflict     = &Error{Code: CodeConflict, Message: "resource already exists"}
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "resource not found"}
	ErrUnauthorized = &Error{Code: CodeUnauthorized, Message: "unauthorized"}
	ErrPersistence  = &Error{Code: CodePersistence, Message: "storage failure"}

	// maps error categories to http status codes
	statusCodeMap = map[string]int{
		CodeValidation:   http.StatusUnprocessableEntity,
		CodeConflict:     http.StatusConflict,
		CodeNotFound:     http.StatusNotFound,
		CodeUnauthorized: http.StatusUnauthorized,
		CodePersistence:  http.StatusInternalServerError,
	}
)

const (
	CodeValidation   = "validation_error"
	CodeConflict     = "conflict"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodePersistence  = "persistence_error"
)

// Error is the application error type. Code identifies the category,
// Fields carries per-field messages for validation failures.
type Error struct {
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches wrapped errors by category code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return errors.Is(e.Err, target)
	}
	return e.Code == t.Code
}

// Validation returns a validation error carrying a field -> message map.
func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "validation failed", Fields: fields}
}

// ValidationField returns a validation error for a single field.
func ValidationField(field, message string) *Error {
	return Validation(map[string]string{field: message})
}

// Conflict returns a conflict error with the given message.
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// NotFound returns a not-found error with the given message.
func NotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// Unauthorized returns an auth error with the given message.
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Persistence wraps an underlying storage error.
func Persistence(err error, message string) *Error {
	return &Error{Code: CodePersistence, Message: message, Err: errors.WithStack(err)}
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnauthorized checks if an error is an auth error
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsPersistence checks if an error is a storage error
func IsPersistence(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// HTTPStatus maps an error to the status code it should render with.
// Unknown errors are treated as internal.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		if code, ok := statusCodeMap[e.Code]; ok {
			return code
		}
	}
	return http.StatusInternalServerError
}

// Message returns the human-readable message for an application error, or
// a generic one for anything unrecognized.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// FieldErrors extracts the field -> message map from a validation error,
// or nil when the error carries none.
func FieldErrors(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
