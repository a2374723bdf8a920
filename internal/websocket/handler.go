package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/auddy/backend/internal/extraction"
	"github.com/auddy/backend/internal/logger"
)

// JobReader returns the current snapshot of a job.
type JobReader interface {
	Get(ctx context.Context, id string) (*extraction.Job, error)
}

// Handler handles WebSocket connections.
type Handler struct {
	hub      *Hub
	jobs     JobReader
	upgrader websocket.Upgrader
	log      *logger.Logger
}

// NewHandler creates a new WebSocket handler. allowedOrigins empty or
// containing "*" accepts any origin.
func NewHandler(hub *Hub, jobs JobReader, allowedOrigins []string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		hub:  hub,
		jobs: jobs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		log: log.WithComponent("websocket"),
	}
}

// ServeWS streams status events for the job named by the {id} path value.
// The current snapshot is sent first; the connection closes after a
// terminal status.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	jobID := r.PathValue("id")

	// fail with a normal HTTP error before upgrading
	if _, err := h.jobs.Get(ctx, jobID); err != nil {
		return err
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.WarnErr(ctx, "websocket upgrade failed", err, logger.Fields{"job_id": jobID})
		return nil
	}

	client := NewClient(h.hub, conn, jobID)
	if err := h.hub.Register(ctx, client); err != nil {
		h.log.Error(ctx, "failed to subscribe to job status", err, logger.Fields{"job_id": jobID})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "status unavailable"))
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump()

	job, err := h.jobs.Get(context.WithoutCancel(ctx), jobID)
	if err != nil {
		h.log.WarnErr(ctx, "failed to load job snapshot", err, logger.Fields{"job_id": jobID})
		return nil
	}
	h.hub.Send(client, NewStatusMessage(job))
	return nil
}

// Hub returns the hub instance for external access.
func (h *Handler) Hub() *Hub {
	return h.hub
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
