package ws

import (
	"context"
	"net/http"

	"github.com/HerbHall/hydrosim/internal/insight"
	"github.com/HerbHall/hydrosim/pkg/plugin"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// SessionLookup reports whether an upload session exists.
type SessionLookup interface {
	HasSession(id string) bool
}

// Handler serves the progress stream and forwards pipeline events to it.
type Handler struct {
	hub      *Hub
	sessions SessionLookup
	origins  []string
	logger   *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a progress handler and subscribes it to pipeline
// events. origins lists extra allowed Origin host patterns; same-origin
// requests are always accepted.
func NewHandler(sessions SessionLookup, bus plugin.EventBus, origins []string, logger *zap.Logger) *Handler {
	h := &Handler{
		hub:      NewHub(logger),
		sessions: sessions,
		origins:  origins,
		logger:   logger,
	}
	if bus != nil {
		bus.Subscribe(insight.TopicPipelineProgress, h.forward)
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/insight/sessions/{id}/progress", h.handleProgress)
}

// handleProgress upgrades the connection and streams the session's stage
// events until the client goes away.
//
//	@Summary		Pipeline progress stream
//	@Description	WebSocket stream of forecast pipeline stage events for one session.
//	@Tags			insight
//	@Param			id path string true "Session ID"
//	@Success		101
//	@Failure		404 {object} map[string]any
//	@Router			/insight/sessions/{id}/progress [get]
func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if h.sessions != nil && !h.sessions.HasSession(id) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}

	client := &Client{
		conn:      conn,
		sessionID: id,
		send:      make(chan Message, 64),
		logger:    h.logger,
	}
	h.hub.Register(client)

	ctx := r.Context()
	done := make(chan struct{})
	go func() {
		client.writePump(ctx)
		close(done)
	}()

	// readPump blocks until the client disconnects.
	client.readPump(ctx)

	h.hub.Unregister(client)
	conn.Close(websocket.StatusNormalClosure, "")
	<-done
}

// forward converts a pipeline event into a WebSocket message.
func (h *Handler) forward(_ context.Context, event plugin.Event) {
	p, ok := event.Payload.(*insight.ProgressEvent)
	if !ok {
		return
	}
	msg := Message{SessionID: p.SessionID, Timestamp: event.Timestamp}
	switch {
	case p.Status == insight.StatusFailed:
		msg.Type = MessageFailed
		msg.Data = FailedData{Stage: string(p.Stage), Error: p.Error}
	case p.Stage == insight.StageDone:
		msg.Type = MessageCompleted
		msg.Data = StageData{Stage: string(p.Stage), Status: p.Status, Step: p.Step, Total: p.Total}
	default:
		msg.Type = MessageStage
		msg.Data = StageData{Stage: string(p.Stage), Status: p.Status, Step: p.Step, Total: p.Total}
	}
	h.hub.Send(msg)
}
