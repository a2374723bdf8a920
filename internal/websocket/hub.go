package websocket

import (
	"context"
	"sync"

	"github.com/auddy/backend/internal/download"
	"github.com/auddy/backend/internal/logger"
	"github.com/auddy/backend/internal/metrics"
)

// StatusSubscriber opens a stream of status events for one job.
type StatusSubscriber interface {
	SubscribeStatus(ctx context.Context, jobID string) (download.Subscription, error)
}

// Hub maintains the set of active clients per job and fans status events
// out to them. One broker subscription is held per watched job.
type Hub struct {
	subscriber StatusSubscriber
	log        *logger.Logger
	metrics    *metrics.Metrics

	mu      sync.Mutex
	clients map[string]map[*Client]bool
	feeds   map[string]download.Subscription
	closed  bool
}

// HubConfig holds optional hub collaborators.
type HubConfig struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics
}

// NewHub creates a new Hub instance.
func NewHub(subscriber StatusSubscriber, cfg *HubConfig) *Hub {
	if cfg == nil {
		cfg = &HubConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		subscriber: subscriber,
		log:        log.WithComponent("websocket"),
		metrics:    cfg.Metrics,
		clients:    make(map[string]map[*Client]bool),
		feeds:      make(map[string]download.Subscription),
	}
}

// Register adds a client, subscribing to its job if nobody else watches it.
// The subscription is live when Register returns, so a snapshot sent
// afterwards cannot miss an update.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return download.ErrQueueClosed
	}

	if _, ok := h.feeds[c.jobID]; !ok {
		sub, err := h.subscriber.SubscribeStatus(context.WithoutCancel(ctx), c.jobID)
		if err != nil {
			return err
		}
		h.feeds[c.jobID] = sub
		go h.feed(c.jobID, sub)
	}

	if h.clients[c.jobID] == nil {
		h.clients[c.jobID] = make(map[*Client]bool)
	}
	h.clients[c.jobID][c] = true

	if h.metrics != nil {
		h.metrics.IncWSConnections()
	}
	return nil
}

// Unregister removes a client. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

// Send queues msg for one client.
func (h *Hub) Send(c *Client, msg *StatusMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.jobID][c] {
		h.deliverLocked(c, msg)
	}
}

// Broadcast sends msg to every client watching its job.
func (h *Hub) Broadcast(msg *StatusMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients[msg.JobID] {
		h.deliverLocked(c, msg)
	}
}

// ClientCount returns the number of clients watching jobID.
func (h *Hub) ClientCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[jobID])
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

// Close disconnects every client and drops all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, clients := range h.clients {
		for c := range clients {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) feed(jobID string, sub download.Subscription) {
	for job := range sub.Channel() {
		h.Broadcast(NewStatusMessage(job))
	}
	h.log.Debug(context.Background(), "status feed closed", logger.Fields{"job_id": jobID})
}

// deliverLocked never blocks; a client that cannot keep up is dropped.
func (h *Hub) deliverLocked(c *Client, msg *StatusMessage) {
	select {
	case c.send <- msg:
	default:
		h.log.Warn(context.Background(), "websocket client too slow, disconnecting", logger.Fields{"job_id": c.jobID})
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *Client) {
	clients, ok := h.clients[c.jobID]
	if !ok || !clients[c] {
		return
	}
	delete(clients, c)
	close(c.send)
	if h.metrics != nil {
		h.metrics.DecWSConnections()
	}

	if len(clients) == 0 {
		delete(h.clients, c.jobID)
		if sub, ok := h.feeds[c.jobID]; ok {
			delete(h.feeds, c.jobID)
			if err := sub.Close(); err != nil {
				h.log.WarnErr(context.Background(), "failed to close status subscription", err, logger.Fields{"job_id": c.jobID})
			}
		}
	}
}
