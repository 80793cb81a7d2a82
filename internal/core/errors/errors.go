// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Candidate validation errors.
var (
	// ErrMissingTitle indicates a candidate record without a usable title.
	ErrMissingTitle = errors.New("candidate title is missing or too short")

	// ErrMissingDescription indicates a candidate record without a usable description.
	ErrMissingDescription = errors.New("candidate description is missing or too short")

	// ErrMissingURL indicates a candidate record without a URL.
	ErrMissingURL = errors.New("candidate url is missing")
)

// Store errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrOpportunityNotFound indicates an opportunity could not be found.
	ErrOpportunityNotFound = errors.New("opportunity not found")

	// ErrAlreadyExists indicates a create hit a uniqueness constraint,
	// typically two discovery sources racing on the same opportunity.
	ErrAlreadyExists = errors.New("record already exists")
)

// Reconciliation errors.
var (
	// ErrBatchSizeTooLarge indicates a reconcile batch above the pairwise comparison limit.
	ErrBatchSizeTooLarge = errors.New("reconcile batch size exceeds limit")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
