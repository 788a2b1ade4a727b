// Package errors defines the sentinel errors shared by the loader, the index
// engine and the serving layer, plus an AppError that carries an HTTP status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrIndexNotBuilt    = errors.New("index not built")
	ErrSnapshotNotFound = errors.New("index snapshot not found")
	ErrSnapshotCorrupt  = errors.New("index snapshot corrupt")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidCorpus    = errors.New("invalid corpus")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Is reports whether any error in err's chain matches target. It lets
// callers importing this package avoid a second "errors" import.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrSnapshotNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrSnapshotCorrupt), errors.Is(err, ErrInvalidCorpus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIndexNotBuilt), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
