package domain

import (
	"github.com/cockroachdb/errors"
)

// Error kinds. Concrete errors are marked with one of these so callers can
// classify them with errors.Is regardless of wrapping.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUpload            = errors.New("upload failed")
	ErrStorage           = errors.New("storage failed")
	ErrCompile           = errors.New("report compilation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
)

func NewValidationError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

func NewNotFoundError(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrNotFound)
}

// NewUploadError wraps a failed photo/document upload. The local wizard state
// is untouched by the failure, so the upload can simply be repeated.
func NewUploadError(err error, msg string) error {
	err = errors.WithHint(errors.Wrap(err, msg), "the upload can be retried; no state was changed")
	return errors.Mark(err, ErrUpload)
}

// NewStorageError wraps a failed write to an external store.
func NewStorageError(err error, msg string) error {
	err = errors.WithHint(errors.Wrap(err, msg), "the execution is saved; storing the report can be retried")
	return errors.Mark(err, ErrStorage)
}

// NewCompileError wraps a report that could not be rendered. The execution it
// belongs to is already stored.
func NewCompileError(err error, msg string) error {
	err = errors.WithHint(errors.Wrap(err, msg), "the execution is saved; the report can be rebuilt later")
	return errors.Mark(err, ErrCompile)
}

func NewInvalidTransitionError(from, to PMStatus) error {
	err := errors.Newf("cannot move PM from %q to %q", from, to)
	return errors.Mark(err, ErrInvalidTransition)
}

// Kind returns the sentinel an error was marked with, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrUpload, ErrStorage, ErrCompile, ErrInvalidTransition} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Hints returns the user-facing retry hints attached to err.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}
