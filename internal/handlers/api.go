package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/common"
)

type APIHandler struct {
	shutdown chan<- struct{}
	logger   arbor.ILogger
}

// NewAPIHandler creates the system handler. A send on shutdown asks the main
// loop to stop the service.
func NewAPIHandler(shutdown chan<- struct{}, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		shutdown: shutdown,
		logger:   logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version":    common.GetVersion(),
		"build":      common.Build,
		"git_commit": common.GitCommit,
	})
}

// HealthHandler returns health check status
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "folio",
	})
}

// ShutdownHandler asks the service to stop. Queued jobs persist and resume on
// the next start.
func (h *APIHandler) ShutdownHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	h.logger.Info().Msg("Shutdown requested via API")
	WriteSuccess(w, "shutting down")

	select {
	case h.shutdown <- struct{}{}:
	default:
	}
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
