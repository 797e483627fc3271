package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = fmt.Errorf("validation failed")
	ErrAuthorization = fmt.Errorf("not authorized")
	ErrNotFound      = fmt.Errorf("not found")
	ErrConflict      = fmt.Errorf("conflict")
	ErrInvalidState  = fmt.Errorf("invalid state")
	ErrRemote        = fmt.Errorf("remote store failure")
)

// RemoteError carries an Entity Store failure. Its message is the store's message, unchanged.
type RemoteError struct {
	Err error
}

func (r *RemoteError) Error() string { return r.Err.Error() }

func (r *RemoteError) Unwrap() error { return r.Err }

func (r *RemoteError) Is(target error) bool { return target == ErrRemote }

// Remote wraps err as a RemoteError unless it already is one of the domain sentinels.
func Remote(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrAuthorization, ErrNotFound, ErrConflict, ErrInvalidState, ErrRemote} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &RemoteError{Err: err}
}

// FieldViolation names one input field that failed validation.
type FieldViolation struct {
	Field       string
	Description string
}

// ValidationError is an ErrValidation carrying per-field detail.
type ValidationError struct {
	// Message replaces the generated message when set.
	Message    string
	Violations []FieldViolation
}

func (v *ValidationError) Error() string {
	if v.Message != "" {
		return v.Message
	}
	parts := make([]string, 0, len(v.Violations))
	for _, fv := range v.Violations {
		parts = append(parts, fv.Field+" "+fv.Description)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, description string) error {
	return &ValidationError{Violations: []FieldViolation{{Field: field, Description: description}}}
}
