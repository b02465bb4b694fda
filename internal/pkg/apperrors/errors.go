package apperrors

import "errors"

// Engine error taxonomy. Every error leaving a service wraps exactly one of these.
var (
	// ErrValidation is a missing or malformed required field. Raised before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition is an illegal status change (campaign state machine or consent completion).
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyFinalized is a consent decision on a record that is already decided or completed.
	ErrAlreadyFinalized = errors.New("consent already finalized")
	// ErrDuplicateResult is a second result for the same (campaign, student) pair.
	ErrDuplicateResult = errors.New("result already recorded for this student")
	// ErrCampaignClosed is a write against a campaign that no longer accepts it.
	ErrCampaignClosed = errors.New("campaign is closed")
	// ErrNotFound is a missing entity.
	ErrNotFound = errors.New("resource not found")
	// ErrUnauthorized is a non-staff actor attempting a staff-only operation, or a missing actor.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransientIO is a backend or network failure. The only kind that is safe to retry.
	ErrTransientIO = errors.New("transient backend failure")
)

// Storage-level signals, never surfaced to HTTP callers as-is.
var (
	// ErrVersionConflict is an optimistic concurrency check that lost a race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStateConflict is a conditional update whose precondition on the current status did not hold.
	ErrStateConflict = errors.New("state precondition failed")
)

// Kind is the stable name of an error class, used as the API error code.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindAlreadyFinalized  Kind = "ALREADY_FINALIZED"
	KindDuplicateResult   Kind = "RESULT_DUPLICATE"
	KindCampaignClosed    Kind = "CAMPAIGN_CLOSED"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindTransientIO       Kind = "TRANSIENT_IO"
	KindInternal          Kind = "INTERNAL"
)

// KindOf classifies err into the taxonomy. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrAlreadyFinalized):
		return KindAlreadyFinalized
	case errors.Is(err, ErrDuplicateResult):
		return KindDuplicateResult
	case errors.Is(err, ErrCampaignClosed):
		return KindCampaignClosed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrTransientIO):
		return KindTransientIO
	default:
		return KindInternal
	}
}

// IsRetryable reports whether err may be retried automatically.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientIO)
}

// Is returns whether target matches any of the errors in errList
func Is(err, target error, errList ...error) bool {
	if errors.Is(err, target) {
		return true
	}

	for _, e := range errList {
		if errors.Is(err, e) {
			return true
		}
	}

	return false
}

// CustomError represents application-specific errors with additional context
type CustomError struct {
	Err     error
	Message string
	Details map[string]interface{}
}

// Error implements error interface
func (e *CustomError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements errors.Unwrap interface
func (e *CustomError) Unwrap() error {
	return e.Err
}

// NewCustomError creates a CustomError with underlying error
func NewCustomError(err error, message string) *CustomError {
	return &CustomError{
		Err:     err,
		Message: message,
	}
}

// WithDetails adds context details to the error
func (e *CustomError) WithDetails(details map[string]interface{}) *CustomError {
	e.Details = details
	return e
}

// NewValidationError creates a validation error naming the offending field.
func NewValidationError(field, message string) error {
	return NewCustomError(ErrValidation, message).WithDetails(map[string]interface{}{"field": field})
}
