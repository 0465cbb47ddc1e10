// -----------------------------------------------------------------------
// WebSocket Handler - live queue statistics feed
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/folio/internal/interfaces"
	"github.com/ternarybob/folio/internal/models"
)

// statsInterval is how often the feed pushes a snapshot to each client.
const statsInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// queueSnapshot is one frame of the feed.
type queueSnapshot struct {
	PDF        models.QueueStats `json:"pdf"`
	Screenshot models.QueueStats `json:"screenshot"`
	Timestamp  string            `json:"timestamp"`
}

// WebSocketHandler pushes queue statistics to connected clients until they
// disconnect.
type WebSocketHandler struct {
	service interfaces.RenderService
	logger  arbor.ILogger
}

// NewWebSocketHandler creates the feed handler.
func NewWebSocketHandler(service interfaces.RenderService, logger arbor.ILogger) *WebSocketHandler {
	return &WebSocketHandler{service: service, logger: logger}
}

// QueueFeedHandler upgrades the connection and streams snapshots on a fixed
// interval. The read loop exists only to observe the close.
func (h *WebSocketHandler) QueueFeedHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Queue feed client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	// Immediate first frame so clients render without waiting a full tick.
	if err := conn.WriteJSON(h.snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-done:
			h.logger.Debug().Str("remote", r.RemoteAddr).Msg("Queue feed client disconnected")
			return
		case <-ticker.C:
			if err := conn.WriteJSON(h.snapshot()); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) snapshot() queueSnapshot {
	return queueSnapshot{
		PDF:        h.service.QueueStats(models.JobKindPDF),
		Screenshot: h.service.QueueStats(models.JobKindScreenshot),
		Timestamp:  time.Now().Format(time.RFC3339),
	}
}
