// Package errors defines the sentinel errors shared across the content core
// and an AppError wrapper that carries a human-readable message alongside the
// underlying cause.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("content not found")
	ErrBackupNotFound    = errors.New("backup not found")
	ErrMediumFailure     = errors.New("storage medium failure")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is reports whether err matches the given sentinel, unwrapping AppError.
func Is(err, sentinel error) bool {
	return errors.Is(err, sentinel)
}
