package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/api"
	"github.com/bumpwatch/bumpwatch/server/internal/metrics"
	"github.com/bumpwatch/bumpwatch/server/internal/refresh"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 16

	// maxClientMessage caps inbound frames; client messages are tiny.
	maxClientMessage = 512
)

// Server → client events.
const (
	EventBumps = "bumps"
	EventError = "error"
)

// Client → server message types.
const (
	TypeFilter  = "filter"
	TypeRefresh = "refresh"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Allow all origins: callers should apply CORS at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients. Data is an
// api.ListResponse for "bumps" and an ErrorData for "error".
type Message struct {
	Event  string         `json:"event"`
	Reason refresh.Reason `json:"reason,omitempty"`
	Data   interface{}    `json:"data"`
}

// ErrorData is the payload of an "error" event.
type ErrorData struct {
	Error  string      `json:"error"`
	Filter bump.Filter `json:"filter,omitempty"`
}

// ClientMessage is what a client may send: a filter change or an explicit
// refresh.
type ClientMessage struct {
	Type   string `json:"type"`
	Filter string `json:"filter,omitempty"`
}

// Lister reads filtered records. *tracker.Tracker implements it.
type Lister interface {
	List(ctx context.Context, f bump.Filter) ([]bump.Record, error)
}

// Hub manages WebSocket views. Every connected client is an independent
// live view with its own filter and its own refresh.Poller.
type Hub struct {
	svc      Lister
	interval time.Duration
	metrics  *metrics.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// client represents one connected WebSocket view.
type client struct {
	conn   *websocket.Conn
	send   chan []byte
	poller *refresh.Poller[api.ListResponse]

	mu     sync.Mutex
	filter bump.Filter
}

// New creates a Hub that reads from svc and refreshes each view every
// interval. m may be nil.
func New(svc Lister, interval time.Duration, m *metrics.Metrics) *Hub {
	return &Hub{
		svc:      svc,
		interval: interval,
		metrics:  m,
		clients:  make(map[*client]struct{}),
	}
}

// Run blocks until ctx is cancelled, then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Invalidate asks every view to refetch, e.g. after a write.
func (h *Hub) Invalidate() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.poller.Trigger(refresh.ReasonInvalidate)
	}
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves one view.
// The initial filter comes from ?filter=; an unknown filter is rejected
// with 400 before the upgrade. The view fetches immediately, then on every
// tick, filter change, refresh request and invalidation. Blocks until the
// connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, err := bump.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{
		conn:   conn,
		send:   make(chan []byte, sendBufSize),
		filter: f,
	}
	c.poller = refresh.New(h.interval, h.fetcher(c), func(res refresh.Result[api.ListResponse]) {
		h.deliver(c, res)
	})

	h.register(c)
	defer h.unregister(c)

	ctx, cancel := context.WithCancel(context.Background())
	pollDone := make(chan struct{})
	go func() {
		c.poller.Run(ctx)
		close(pollDone)
	}()
	defer func() {
		cancel()
		<-pollDone
	}()

	go c.writePump()
	h.readPump(c) // blocks until connection closes
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.metrics.ViewOpened()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		h.metrics.ViewClosed()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
	for i := 0; i < n; i++ {
		h.metrics.ViewClosed()
	}
}

// fetcher returns the poller's fetch function for c. The filter is read
// when the fetch starts.
func (h *Hub) fetcher(c *client) func(context.Context) (api.ListResponse, error) {
	return func(ctx context.Context) (api.ListResponse, error) {
		f := c.currentFilter()
		recs, err := h.svc.List(ctx, f)
		if err != nil {
			return api.ListResponse{Filter: f}, err
		}
		return api.BuildList(recs, f, time.Now()), nil
	}
}

// deliver turns a poll result into a message. A failed fetch replaces the
// list with an error event.
func (h *Hub) deliver(c *client, res refresh.Result[api.ListResponse]) {
	msg := Message{Event: EventBumps, Reason: res.Reason, Data: res.Value}
	if res.Err != nil {
		slog.Warn("ws: fetch failed", "filter", res.Value.Filter, "reason", res.Reason, "err", res.Err)
		msg = Message{Event: EventError, Reason: res.Reason, Data: ErrorData{Error: res.Err.Error(), Filter: res.Value.Filter}}
	}
	h.sendJSON(c, msg)
}

func (h *Hub) sendJSON(c *client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("ws: encode message", "event", msg.Event, "err", err)
		return
	}

	// Membership is checked under the lock so a send never races with
	// unregister closing the channel.
	full := false
	h.mu.RLock()
	if _, ok := h.clients[c]; ok {
		select {
		case c.send <- data:
		default:
			full = true
		}
	}
	h.mu.RUnlock()

	if full {
		// Client's outgoing buffer is full: disconnect it.
		h.unregister(c)
	}
}

func (c *client) currentFilter() bump.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *client) setFilter(f bump.Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// handle applies one client message.
func (h *Hub) handle(c *client, raw []byte) {
	var m ClientMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		h.sendJSON(c, Message{Event: EventError, Data: ErrorData{Error: "invalid message: " + err.Error()}})
		return
	}
	switch m.Type {
	case TypeFilter:
		f, err := bump.ParseFilter(m.Filter)
		if err != nil {
			h.sendJSON(c, Message{Event: EventError, Data: ErrorData{Error: err.Error(), Filter: c.currentFilter()}})
			return
		}
		c.setFilter(f)
		c.poller.Trigger(refresh.ReasonFilter)
	case TypeRefresh:
		c.poller.Trigger(refresh.ReasonRefresh)
	default:
		h.sendJSON(c, Message{Event: EventError, Data: ErrorData{Error: "unknown message type " + m.Type}})
	}
}

// writePump drains the client's send channel and forwards messages to the
// WebSocket connection. It also sends periodic ping frames. Runs in its own
// goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				// Channel was closed (hub is shutting down or client removed).
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads client messages and control frames until the connection
// closes.
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxClientMessage)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handle(c, raw)
	}
}
