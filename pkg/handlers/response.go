package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/insightql/insight-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// statusFor maps service errors onto HTTP statuses: validation problems
// are the caller's fault (400), missing resources are 404, everything
// else is a 500.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrUnsafeSQL):
		return http.StatusBadRequest, "unsafe_sql"
	case errors.Is(err, apperrors.ErrInvalidSQL):
		return http.StatusBadRequest, "invalid_sql"
	case errors.Is(err, apperrors.ErrMissingParameter):
		return http.StatusBadRequest, "missing_parameter"
	case errors.Is(err, apperrors.ErrConnection):
		return http.StatusInternalServerError, "connection_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
