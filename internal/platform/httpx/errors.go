// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Order matters: ErrDuplicate is checked before ErrConflict so wrapped
// duplicates keep their own title.
var problems = []struct {
	target error
	status int
	title  string
}{
	{ErrNotFound, http.StatusNotFound, "Not Found"},
	{ErrDuplicate, http.StatusConflict, "Duplicate"},
	{ErrConflict, http.StatusConflict, "Conflict"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed"},
	{ErrForbidden, http.StatusForbidden, "Forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized"},
}

// StatusOf reports the HTTP status RespondError would use for err.
func StatusOf(err error) int {
	for _, p := range problems {
		if errors.Is(err, p.target) {
			return p.status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807. Errors
// that match no sentinel never leak their message.
func RespondError(w http.ResponseWriter, err error) {
	for _, p := range problems {
		if errors.Is(err, p.target) {
			Problem(w, p.status, p.title, err.Error())
			return
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		Problem(w, http.StatusGatewayTimeout, "Timeout", "")
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
