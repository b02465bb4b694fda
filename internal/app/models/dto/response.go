package dto

import "time"

// APIResponse is the envelope of every answer. Callers must check Success before reading Data.
type APIResponse struct {
	Success   bool         `json:"success" example:"true"`
	Message   string       `json:"message,omitempty" example:"Campaign created"`
	Data      interface{}  `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp" example:"2025-04-23T12:01:05.123Z"`
}

// ErrorResponse documents the failure shape of APIResponse
type ErrorResponse struct {
	Success   bool         `json:"success" example:"false"`
	Message   string       `json:"message,omitempty"`
	Error     *ErrorDetail `json:"error"`
	Timestamp time.Time    `json:"timestamp" example:"2025-04-23T12:01:05.123Z"`
}

// NewSuccessResponse creates a successful envelope
func NewSuccessResponse(data interface{}, message string) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewErrorResponse creates a failed envelope
func NewErrorResponse(errorDetail *ErrorDetail) APIResponse {
	resp := APIResponse{
		Success:   false,
		Error:     errorDetail,
		Timestamp: time.Now(),
	}
	if errorDetail != nil {
		resp.Message = errorDetail.Message
	}
	return resp
}
