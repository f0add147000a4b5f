package api

import (
	"context"
	"encoding/json"
	"net/http"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/logging"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code domain.Code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    string(code),
		Message: message,
	})
}

func writeValidationError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, domain.CodeValidation, err.Error())
}

// handleServiceError maps service errors to HTTP responses by their business code.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)
	switch code {
	case domain.CodeNotFound:
		writeError(w, http.StatusNotFound, code, err.Error())
	case domain.CodeVersionConflict:
		writeError(w, http.StatusConflict, code, "concurrent modification detected, please retry")
	case domain.CodeStateConflict, domain.CodeDuplicate:
		writeError(w, http.StatusConflict, code, err.Error())
	case domain.CodeValidation:
		writeError(w, http.StatusBadRequest, code, err.Error())
	case domain.CodeInvalidCredentials:
		writeError(w, http.StatusUnauthorized, code, err.Error())
	case domain.CodeInternal:
		logging.ErrorContext(ctx, "Internal error", "error", err)
		writeError(w, http.StatusInternalServerError, code, "internal server error")
	default:
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	}
}
