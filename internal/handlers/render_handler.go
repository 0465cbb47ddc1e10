// -----------------------------------------------------------------------
// Render Handler - HTTP surface over the render service, per kind
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// maxSubmitBytes bounds the request body; inline documents larger than this
// are rejected before parsing.
const maxSubmitBytes = 10 << 20

// RenderHandler serves submission, status, cancel, remove, download and stats
// for one or both render kinds.
type RenderHandler struct {
	service interfaces.RenderService
	logger  arbor.ILogger
}

// NewRenderHandler creates a render handler.
func NewRenderHandler(service interfaces.RenderService, logger arbor.ILogger) *RenderHandler {
	return &RenderHandler{service: service, logger: logger}
}

// SubmitHandler handles POST /api/{kind}: decode, submit, respond with the
// job view. An idempotent hit on a completed job returns 200; a fresh
// enqueue returns 202.
func (h *RenderHandler) SubmitHandler(kind models.JobKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !RequireMethod(w, r, http.MethodPost) {
			return
		}

		var req interfaces.SubmitRequest
		body := http.MaxBytesReader(w, r.Body, maxSubmitBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
			return
		}

		job, err := h.service.Submit(kind, &req)
		if err != nil {
			h.logger.Warn().
				Str("kind", string(kind)).
				Str("key", req.Key).
				Err(err).
				Msg("Submission rejected")
			WriteServiceError(w, err)
			return
		}

		status := http.StatusAccepted
		if job.Status == models.JobStatusCompleted {
			status = http.StatusOK
		}
		WriteJSON(w, status, job.View())
	}
}

// RouteHandler dispatches the subtree under /api/{kind}/:
//
//	GET    /api/{kind}/stats           queue statistics
//	GET    /api/{kind}/{key}           job status
//	DELETE /api/{kind}/{key}           remove job and artifact
//	POST   /api/{kind}/{key}/cancel    cancel job
//	GET    /api/{kind}/{key}/download  stream the artifact
func (h *RenderHandler) RouteHandler(kind models.JobKind) http.HandlerFunc {
	prefix := "/api/" + string(kind) + "/"
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		parts := strings.Split(strings.Trim(rest, "/"), "/")

		switch {
		case len(parts) == 1 && parts[0] == "stats":
			h.statsHandler(w, r, kind)
		case len(parts) == 1 && parts[0] != "":
			h.jobHandler(w, r, kind, parts[0])
		case len(parts) == 2 && parts[1] == "cancel":
			h.cancelHandler(w, r, kind, parts[0])
		case len(parts) == 2 && parts[1] == "download":
			h.downloadHandler(w, r, kind, parts[0])
		default:
			WriteError(w, http.StatusNotFound, "unknown route")
		}
	}
}

func (h *RenderHandler) statsHandler(w http.ResponseWriter, r *http.Request, kind models.JobKind) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, h.service.QueueStats(kind))
}

func (h *RenderHandler) jobHandler(w http.ResponseWriter, r *http.Request, kind models.JobKind, key string) {
	switch r.Method {
	case http.MethodGet:
		view, err := h.service.GetStatus(kind, key)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if !h.service.Remove(kind, key) {
			WriteError(w, http.StatusConflict, fmt.Sprintf("job %q does not exist or is processing", key))
			return
		}
		WriteSuccess(w, fmt.Sprintf("job %q removed", key))
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *RenderHandler) cancelHandler(w http.ResponseWriter, r *http.Request, kind models.JobKind, key string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if !h.service.Cancel(kind, key) {
		WriteError(w, http.StatusConflict, fmt.Sprintf("job %q does not exist or is already finished", key))
		return
	}
	WriteSuccess(w, fmt.Sprintf("job %q cancelled", key))
}

func (h *RenderHandler) downloadHandler(w http.ResponseWriter, r *http.Request, kind models.JobKind, key string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	artifact, err := h.service.OpenArtifact(kind, key)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	defer artifact.Reader.Close()

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", artifact.Size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))

	if _, err := io.Copy(w, artifact.Reader); err != nil {
		h.logger.Debug().
			Str("kind", string(kind)).
			Str("key", key).
			Err(err).
			Msg("Artifact download interrupted")
	}
}
