package server

import (
	"net/http"

	"github.com/ternarybob/folio/internal/handlers"
	"github.com/ternarybob/folio/internal/models"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	renderHandler := handlers.NewRenderHandler(s.app.Render, s.app.Logger)
	apiHandler := handlers.NewAPIHandler(s.shutdown, s.app.Logger)
	wsHandler := handlers.NewWebSocketHandler(s.app.Render, s.app.Logger)

	// API routes - PDF rendering
	mux.HandleFunc("/api/pdf", renderHandler.SubmitHandler(models.JobKindPDF))
	mux.HandleFunc("/api/pdf/", renderHandler.RouteHandler(models.JobKindPDF)) // GET/DELETE /{key}, /{key}/cancel, /{key}/download, /stats

	// API routes - Screenshot rendering
	mux.HandleFunc("/api/screenshot", renderHandler.SubmitHandler(models.JobKindScreenshot))
	mux.HandleFunc("/api/screenshot/", renderHandler.RouteHandler(models.JobKindScreenshot))

	// WebSocket route - live queue statistics
	mux.HandleFunc("/ws/queue", wsHandler.QueueFeedHandler)

	// API routes - System
	mux.HandleFunc("/api/version", apiHandler.VersionHandler)
	mux.HandleFunc("/api/health", apiHandler.HealthHandler)
	mux.HandleFunc("/api/shutdown", apiHandler.ShutdownHandler)

	// Catch-all for unknown API paths
	mux.HandleFunc("/", apiHandler.NotFoundHandler)

	return mux
}
