package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/catalog"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/startup"
)

// Startup is the orchestrator surface the handlers drive.
type Startup interface {
	Status() startup.Status
	PartScanned(partID string, ordinal, total int)
	Retry(ctx context.Context) error
	ReportHardwareFault(message string)
}

// LogSource exposes the managed daemon process: its captured output and
// liveness. Nil when the daemon runs elsewhere (wifi transport).
type LogSource interface {
	Logs() []string
	Running() bool
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	startup   Startup
	store     *catalog.Store
	buffer    *daemon.StateBuffer
	logs      LogSource
	metrics   *monitoring.Metrics
	transport string
}

// NewHandlers creates a new handler set.
func NewHandlers(
	st Startup,
	store *catalog.Store,
	buffer *daemon.StateBuffer,
	logs LogSource,
	metrics *monitoring.Metrics,
	transport string,
) *Handlers {
	return &Handlers{
		startup:   st,
		store:     store,
		buffer:    buffer,
		logs:      logs,
		metrics:   metrics,
		transport: transport,
	}
}

// Root handles the service banner.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"service":   "reachy-mini-bridge",
		"version":   "1.0.0",
		"transport": h.transport,
	})
}

// Health handles the detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	snap := h.metrics.GetSnapshot()
	st := h.startup.Status()

	running := false
	if h.logs != nil {
		running = h.logs.Running()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"phase":     st.Phase,
		"transport": h.transport,
		"daemon": gin.H{
			"managed": h.logs != nil,
			"running": running,
		},
		"requests": gin.H{
			"total":  snap.TotalRequests,
			"errors": snap.TotalErrors,
		},
	})
}

// StartupStatus returns the current startup snapshot.
func (h *Handlers) StartupStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.startup.Status())
}

type scanRequest struct {
	PartID string `json:"part_id" binding:"required"`
	Index  int    `json:"index" binding:"required,min=1"`
	Total  int    `json:"total" binding:"required,min=1"`
}

// ScanSignal records one "hardware part scanned" signal from the UI.
func (h *Handlers) ScanSignal(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.startup.PartScanned(req.PartID, req.Index, req.Total)
	c.JSON(http.StatusOK, h.startup.Status())
}

// RetryStartup recovers from the error screen: restart the daemon and
// re-enter the scan.
func (h *Handlers) RetryStartup(c *gin.Context) {
	if err := h.startup.Retry(c.Request.Context()); err != nil {
		switch {
		case errors.Is(err, startup.ErrNotInError):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, startup.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, h.startup.Status())
}

type faultRequest struct {
	Message string `json:"message"`
}

// ReportFault records an externally detected hardware fault. The body is
// optional; an empty fault gets a generic message.
func (h *Handlers) ReportFault(c *gin.Context) {
	var req faultRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.startup.ReportHardwareFault(req.Message)
	c.JSON(http.StatusOK, h.startup.Status())
}

// Apps returns the prefetched app catalog.
func (h *Handlers) Apps(c *gin.Context) {
	entries := h.store.Entries()

	var fetchedAt any
	if t := h.store.FetchedAt(); !t.IsZero() {
		fetchedAt = t.Unix()
	}

	c.JSON(http.StatusOK, gin.H{
		"apps":       entries,
		"count":      len(entries),
		"fetched_at": fetchedAt,
	})
}

// DaemonLogs returns the managed daemon's captured output.
func (h *Handlers) DaemonLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusOK, gin.H{
			"managed": false,
			"running": false,
			"lines":   []string{},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"managed": true,
		"running": h.logs.Running(),
		"lines":   h.logs.Logs(),
	})
}

// State returns the latest stream frame, with the solved passive joints
// when the stability gate has produced them.
func (h *Handlers) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.buffer.Snapshot())
}
