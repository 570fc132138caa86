package errors

import (
	"errors"
	"fmt"
)

// Common application errors with proper types for error handling

var (
	// ErrInvalidInput indicates the form failed validation
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooManyFiles indicates a file selection would exceed the attachment limit
	ErrTooManyFiles = errors.New("too many files")

	// ErrUnsupportedFile indicates an attachment is not an accepted document
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrSubmissionFailed indicates the remote endpoint could not accept the form
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrSubmitThrottled indicates a submit was triggered too soon after the previous one
	ErrSubmitThrottled = errors.New("submit throttled")
)

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// TooManyFilesError reports how many files were offered against the remaining capacity
func TooManyFilesError(selected, remaining int) error {
	return fmt.Errorf("selected %d files with room for %d: %w", selected, remaining, ErrTooManyFiles)
}

// UnsupportedFileError creates an unsupported file error with context
func UnsupportedFileError(name, reason string) error {
	return fmt.Errorf("%s: %s: %w", name, reason, ErrUnsupportedFile)
}

// SubmissionError wraps the cause of a failed submission
func SubmissionError(cause error) error {
	return fmt.Errorf("%w: %w", ErrSubmissionFailed, cause)
}
