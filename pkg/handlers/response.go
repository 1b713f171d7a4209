package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dbdeck/dbdeck-engine/pkg/apperrors"
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

// WriteServiceError maps a service-layer error onto an HTTP response:
//
//	ErrNotFound          404
//	ErrValidation        400
//	ErrConflict          409
//	ErrConnectionFailed  502
//	ErrTimeout           504
//	ErrStatementFailed   422 (statement reached the engine and was rejected)
//	ErrCredentialsKeyMismatch 500 (named code so operators can spot a key rotation)
//	anything else        500
func WriteServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrCredentialsKeyMismatch):
		return ErrorResponse(w, http.StatusInternalServerError, "credentials_key_mismatch", err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return ErrorResponse(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperrors.ErrValidation):
		return ErrorResponse(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, apperrors.ErrConflict):
		return ErrorResponse(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperrors.ErrTimeout):
		return ErrorResponse(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, apperrors.ErrConnectionFailed):
		return ErrorResponse(w, http.StatusBadGateway, "connection_failed", err.Error())
	case errors.Is(err, apperrors.ErrStatementFailed):
		return ErrorResponse(w, http.StatusUnprocessableEntity, "statement_failed", err.Error())
	default:
		return ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
