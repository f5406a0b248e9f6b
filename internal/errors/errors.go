package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/habitual/internal/logger"
	"github.com/julianstephens/habitual/internal/storage"
)

var (
	// ErrValidation marks user input that failed a precondition. No write was issued.
	ErrValidation = stderrors.New("validation failed")
	// ErrNotFound is returned when a habit does not exist or belongs to another owner
	ErrNotFound = stderrors.New("not found")
	// ErrStoreUnavailable wraps transport, permission and quota failures from the store
	ErrStoreUnavailable = stderrors.New("store unavailable")
	// ErrDuplicateLog is returned when a completion log already exists for (owner, habit, date)
	ErrDuplicateLog = stderrors.New("completion log already exists")
	// ErrNoOwner is returned when an operation needs a signed-in user and there is none
	ErrNoOwner = stderrors.New("no signed-in user")
)

// ValidationError describes which input field was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StoreError records which repository operation a store failure came from.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStoreUnavailable, e.Err}
}

// CleanupWarning reports that a habit was deleted but some of its completion
// logs could not be. The primary operation succeeded.
type CleanupWarning struct {
	HabitID string
	Err     error
}

func (w *CleanupWarning) Error() string {
	return fmt.Sprintf("habit %s deleted but log cleanup failed: %v", w.HabitID, w.Err)
}

func (w *CleanupWarning) Unwrap() error { return w.Err }

// IsWarning reports whether err only carries a CleanupWarning.
func IsWarning(err error) bool {
	var w *CleanupWarning
	return stderrors.As(err, &w)
}

// MapStore translates a document store error into the application's error
// vocabulary. Context cancellation passes through untouched.
func MapStore(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case stderrors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case stderrors.Is(err, storage.ErrUniqueViolation):
		return fmt.Errorf("%s: %w", op, ErrDuplicateLog)
	default:
		return &StoreError{Op: op, Err: err}
	}
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	if IsWarning(err) {
		return fmt.Sprintf("Warning: %v", err)
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
