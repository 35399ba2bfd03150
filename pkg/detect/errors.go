package detect

import "errors"

// MissingPathMessage is returned when a predict request carries no CSV path.
const MissingPathMessage = "Please provide a valid CSV file path as a query parameter."

// ErrMissingPath is the cause of the ValidationError returned for an empty path.
var ErrMissingPath = errors.New(MissingPathMessage)

// ValidationError reports a problem with the caller's input: a missing path
// or a table that lacks required columns. It maps to a client error.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// ProcessingError reports any failure while loading, transforming or scoring
// a table. Error returns the underlying message unchanged.
type ProcessingError struct {
	// Stage is the pipeline stage that failed: load, features, transform or score.
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string { return e.Err.Error() }

func (e *ProcessingError) Unwrap() error { return e.Err }

func validation(err error) error {
	return &ValidationError{Err: err}
}

func processing(stage string, err error) error {
	return &ProcessingError{Stage: stage, Err: err}
}
