package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ternarybob/folio/internal/common"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError translates a service error into the matching HTTP status.
func WriteServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrUnsafeSource):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrDuplicateKey):
		return WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrQueueFull):
		return WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrNotReady):
		return WriteError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrArtifactMissing):
		return WriteError(w, http.StatusGone, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
