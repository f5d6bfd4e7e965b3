package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"portal_analysis_backend/platform/httpkit"
	"portal_analysis_backend/platform/logger"
)

const clientBuffer = 32

// Message is one event queued for an SSE client.
type Message struct {
	Event string
	Data  json.RawMessage
}

type client struct {
	tenantID uuid.UUID
	messages chan Message
}

// Hub keeps the SSE connections of each tenant.
type Hub struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
	done    chan struct{}
	once    sync.Once
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		done:    make(chan struct{}),
		log:     log,
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[c.tenantID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.tenantID] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.tenantID]
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.tenantID)
	}
}

// Clients returns the number of open connections for a tenant.
func (h *Hub) Clients(tenantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[tenantID])
}

// Emit queues the event for every connection of the tenant. A client whose
// buffer is full misses the event rather than blocking the others.
func (h *Hub) Emit(_ context.Context, event string, payload any, tenantID uuid.UUID) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[tenantID] {
		select {
		case c.messages <- msg:
		default:
			h.log.Warn("realtime: sse buffer full", "tenantId", tenantID, "event", event)
		}
	}
	return nil
}

// Handler streams the caller's tenant events.
// GET /api/v1/analysis/events
func (h *Hub) Handler(c *gin.Context) {
	_, tenantID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	cl := &client{tenantID: tenantID, messages: make(chan Message, clientBuffer)}
	h.add(cl)
	defer h.remove(cl)

	c.SSEvent("connected", gin.H{"tenantId": tenantID})
	c.Writer.Flush()

	gone := c.Request.Context().Done()
	for {
		select {
		case <-gone:
			return
		case <-h.done:
			return
		case msg := <-cl.messages:
			c.SSEvent(msg.Event, string(msg.Data))
			c.Writer.Flush()
		}
	}
}

// Close ends every open stream. Safe to call more than once.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
}

var _ Emitter = (*Hub)(nil)
