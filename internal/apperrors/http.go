package apperrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the appropriate HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConfig), errors.Is(err, ErrCredentialFormat):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrAuth), errors.Is(err, ErrUpload),
		errors.Is(err, ErrPermission), errors.Is(err, ErrRecord):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
