package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/startup"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback server, the desktop shell is the only client
	},
}

// StatusSource yields the current startup snapshot.
type StatusSource interface {
	Status() startup.Status
}

// Handler pushes startup phase transitions to connected shell clients.
type Handler struct {
	source  StatusSource
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu   sync.Mutex
	subs map[chan startup.Status]struct{}
}

// NewHandler creates a new WebSocket handler.
func NewHandler(source StatusSource, log *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		source:  source,
		log:     log.Named("ws"),
		metrics: metrics,
		subs:    make(map[chan startup.Status]struct{}),
	}
}

// Broadcast fans a phase transition out to every connected client. A slow
// client misses intermediate updates rather than blocking the caller; the
// current snapshot is always available over GET /api/startup/status.
func (h *Handler) Broadcast(st startup.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- st:
		default:
		}
	}
}

func (h *Handler) subscribe() chan startup.Status {
	ch := make(chan startup.Status, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Handler) unsubscribe(ch chan startup.Status) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// HandleConnection handles WebSocket upgrade and the event push loop.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// A client that connects mid-run starts from the current snapshot.
	if err := h.sendStatus(conn, h.source.Status()); err != nil {
		return
	}

	// The client sends nothing meaningful; reading only detects the close
	// handshake. All writes stay on this goroutine.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case st := <-ch:
			if err := h.sendStatus(conn, st); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendStatus(conn *websocket.Conn, st startup.Status) error {
	if err := h.send(conn, map[string]any{
		"type":      "phase",
		"status":    st,
		"timestamp": time.Now().Unix(),
	}); err != nil {
		return err
	}
	if st.Phase == startup.PhaseReady.String() {
		return h.send(conn, map[string]any{
			"type":      "ready",
			"timestamp": time.Now().Unix(),
		})
	}
	return nil
}

func (h *Handler) send(conn *websocket.Conn, data any) error {
	return conn.WriteJSON(data)
}
