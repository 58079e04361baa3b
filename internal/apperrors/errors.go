// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation       = errors.New("validation error")
	ErrConfig           = errors.New("configuration error")
	ErrCredentialFormat = errors.New("credential format error")
	ErrAuth             = errors.New("authentication error")
	ErrUpload           = errors.New("upload error")
	ErrPermission       = errors.New("permission error")
	ErrRecord           = errors.New("record error")
	ErrNotFound         = errors.New("not found")
	ErrInternal         = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // Offending field or setting key (e.g., "name", "spreadsheetId")
	Op       string // Operation that failed (e.g., "drive.files.create")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches either.
func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Cause}
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// Config reports a missing or unusable setting.
func Config(key, message string) error {
	return &Error{
		Sentinel: ErrConfig,
		Message:  message,
		Field:    key,
	}
}

// CredentialFormat reports credential material that could not be parsed.
func CredentialFormat(path string, cause error) error {
	return &Error{
		Sentinel: ErrCredentialFormat,
		Message:  fmt.Sprintf("credentials file %s is not valid JSON: %v", path, cause),
		Op:       "credentials.parse",
		Cause:    cause,
	}
}

// Auth wraps a failure to exchange credential material for a session.
func Auth(op string, cause error) error {
	return wrap(ErrAuth, "authentication failed", op, cause)
}

// Upload wraps a failure to read or transmit the artifact.
func Upload(op string, cause error) error {
	return wrap(ErrUpload, "upload failed", op, cause)
}

// Permission wraps a failure to change the artifact's sharing policy.
func Permission(op string, cause error) error {
	return wrap(ErrPermission, "publishing link failed", op, cause)
}

// Record wraps a failure to append the tracking row.
func Record(op string, cause error) error {
	return wrap(ErrRecord, "recording row failed", op, cause)
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Field:    resource,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

func wrap(sentinel error, prefix, op string, cause error) error {
	return &Error{
		Sentinel: sentinel,
		Message:  fmt.Sprintf("%s: %v", prefix, cause),
		Op:       op,
		Cause:    cause,
	}
}
