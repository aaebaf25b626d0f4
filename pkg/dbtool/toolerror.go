package dbtool

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of structured codes the protocol carries.
type ErrorCode string

const (
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeExecutionError  ErrorCode = "EXECUTION_ERROR"
	CodeConnectionError ErrorCode = "CONNECTION_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeUnknownError    ErrorCode = "UNKNOWN_ERROR"
)

// ToolError is a protocol-level failure with a structured code. The server
// serializes it into the error body; the client reconstructs it from one,
// so code semantics survive the HTTP round trip.
type ToolError struct {
	Code    ErrorCode
	Message string
	Details any
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewToolError builds a ToolError with the given code.
func NewToolError(code ErrorCode, message string, details any) *ToolError {
	return &ToolError{Code: code, Message: message, Details: details}
}

// CodeOf extracts the structured code from err, mapping anything that is
// not a ToolError to UNKNOWN_ERROR.
func CodeOf(err error) ErrorCode {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeUnknownError
}
