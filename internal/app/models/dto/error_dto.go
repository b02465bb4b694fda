package dto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/yigit/schoolhealth/internal/pkg/apperrors"
)

// ErrorCode represents standardized error codes. Engine codes are the apperrors kinds.
type ErrorCode string

// Standard error codes for the application
const (
	ErrorCodeValidationFailed  ErrorCode = ErrorCode(apperrors.KindValidation)
	ErrorCodeInvalidTransition ErrorCode = ErrorCode(apperrors.KindInvalidTransition)
	ErrorCodeAlreadyFinalized  ErrorCode = ErrorCode(apperrors.KindAlreadyFinalized)
	ErrorCodeDuplicateResult   ErrorCode = ErrorCode(apperrors.KindDuplicateResult)
	ErrorCodeCampaignClosed    ErrorCode = ErrorCode(apperrors.KindCampaignClosed)
	ErrorCodeResourceNotFound  ErrorCode = ErrorCode(apperrors.KindNotFound)
	ErrorCodeUnauthorized      ErrorCode = ErrorCode(apperrors.KindUnauthorized)
	ErrorCodeTransientIO       ErrorCode = ErrorCode(apperrors.KindTransientIO)
	ErrorCodeInternalServer    ErrorCode = ErrorCode(apperrors.KindInternal)

	// Transport errors raised before a request reaches a service
	ErrorCodeInvalidToken ErrorCode = "AUTH_INVALID_TOKEN"
	ErrorCodeExpiredToken ErrorCode = "AUTH_EXPIRED_TOKEN"
	ErrorCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrorCodeRouteMissing ErrorCode = "ROUTE_NOT_FOUND"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

// Severity levels
const (
	ErrorSeverityInfo     ErrorSeverity = "INFO"
	ErrorSeverityWarning  ErrorSeverity = "WARNING"
	ErrorSeverityError    ErrorSeverity = "ERROR"
	ErrorSeverityCritical ErrorSeverity = "CRITICAL"
)

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code     ErrorCode     `json:"code" example:"VALIDATION_ERROR"`
	Message  string        `json:"message" example:"name is required"`
	Field    string        `json:"field,omitempty" example:"name"`
	Severity ErrorSeverity `json:"severity" example:"ERROR"`
	// Retryable is set only for failures the client may retry with backoff.
	Retryable bool        `json:"retryable,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

// NewErrorDetail creates a new error detail
func NewErrorDetail(code ErrorCode, message string) *ErrorDetail {
	return &ErrorDetail{
		Code:     code,
		Message:  message,
		Severity: ErrorSeverityError,
	}
}

// WithField adds a field name to the error detail
func (e *ErrorDetail) WithField(field string) *ErrorDetail {
	e.Field = field
	return e
}

// WithSeverity sets the severity level of the error
func (e *ErrorDetail) WithSeverity(severity ErrorSeverity) *ErrorDetail {
	e.Severity = severity
	return e
}

// WithDetails adds additional details to the error
func (e *ErrorDetail) WithDetails(details interface{}) *ErrorDetail {
	e.Details = details
	return e
}

// HandleValidationError turns a binding failure into a single VALIDATION_ERROR detail
func HandleValidationError(err error) *ErrorDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewErrorDetail(ErrorCodeValidationFailed, "Invalid request format").WithDetails(err.Error())
	}

	fields := make([]string, 0, len(verrs))
	messages := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := lowerFirst(fe.Field())
		fields = append(fields, name)
		messages[name] = describeRule(fe)
	}
	detail := NewErrorDetail(ErrorCodeValidationFailed, fmt.Sprintf("Invalid fields: %s", strings.Join(fields, ", ")))
	if len(fields) == 1 {
		detail = detail.WithField(fields[0])
	}
	return detail.WithDetails(messages)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "gt", "gte", "min":
		return "must be at least " + fe.Param()
	case "oneof", "family", "campaign_status":
		return "has an unknown value"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
