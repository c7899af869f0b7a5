package httputil

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the plain {"error": "..."} envelope. Authentication failures
// always use it with the same message; the reason stays in the logs.
type ErrorBody struct {
	Error string `json:"error"`
}

// GenerationErrorBody is returned when app generation fails.
type GenerationErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details"`
}

const authFailedMessage = "Authentication failed"

func WriteJSON(w http.ResponseWriter, requestID string, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if requestID != "" {
		w.Header().Set("X-Request-ID", requestID)
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func WriteAuthError(w http.ResponseWriter, requestID string) {
	WriteJSON(w, requestID, http.StatusUnauthorized, ErrorBody{Error: authFailedMessage})
}

func WriteGenerationError(w http.ResponseWriter, requestID, code, details string) {
	WriteJSON(w, requestID, http.StatusInternalServerError, GenerationErrorBody{
		Error:   "Failed to generate app",
		Code:    code,
		Details: details,
	})
}

func WriteBadRequestError(w http.ResponseWriter, requestID, message string) {
	WriteJSON(w, requestID, http.StatusBadRequest, ErrorBody{Error: message})
}
