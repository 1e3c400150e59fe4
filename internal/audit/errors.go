package audit

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps any failure of the backing KV store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound reports a job id with no stored record.
	ErrNotFound = errors.New("not found")
	// ErrValidation reports malformed submitter input.
	ErrValidation = errors.New("validation failed")
	// ErrJobTimeout reports a job that exceeded its time budget.
	ErrJobTimeout = errors.New("job timed out")
	// ErrUnknownJobType reports a job whose type no pipeline handles.
	ErrUnknownJobType = errors.New("unknown job type")
)

// FetchError is a network or timeout failure while fetching one URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AnalysisError is a failure inside one analyzer.
type AnalysisError struct {
	Category Category
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s analyzer: %v", e.Category, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Validationf builds an error wrapping ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
