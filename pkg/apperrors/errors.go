package apperrors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidSQL       = errors.New("invalid SQL")
	ErrUnsafeSQL        = errors.New("unsafe SQL rejected")
	ErrMissingParameter = errors.New("missing required parameter")
	ErrConnection       = errors.New("connection failed")
	ErrExecutionFailed  = errors.New("query execution failed")
)
