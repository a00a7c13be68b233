package ws

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/startup"
)

type fakeSource struct {
	mu sync.Mutex
	st startup.Status
}

func (f *fakeSource) Status() startup.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeSource) set(st startup.Status) {
	f.mu.Lock()
	f.st = st
	f.mu.Unlock()
}

type event struct {
	Type      string         `json:"type"`
	Status    startup.Status `json:"status"`
	Timestamp int64          `json:"timestamp"`
}

func newTestHandler(t *testing.T, source StatusSource) (*Handler, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(source, logging.NewNop(), monitoring.NewMetricsWith(prometheus.NewRegistry()))
	router := gin.New()
	router.GET("/api/startup/events", h.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/startup/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })

	return h, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestHandlerSendsSnapshotOnConnect(t *testing.T) {
	source := &fakeSource{st: startup.Status{
		RunID:    "run-1",
		Phase:    "scanning",
		Progress: 0,
		Scan:     startup.ScanState{Scanned: 12, Total: 50},
	}}
	_, conn := newTestHandler(t, source)

	ev := readEvent(t, conn)
	assert.Equal(t, "phase", ev.Type)
	assert.Equal(t, "scanning", ev.Status.Phase)
	assert.Equal(t, 12, ev.Status.Scan.Scanned)
	assert.NotZero(t, ev.Timestamp)
}

func TestHandlerBroadcastsTransitions(t *testing.T) {
	source := &fakeSource{st: startup.Status{Phase: "scanning"}}
	h, conn := newTestHandler(t, source)

	readEvent(t, conn) // connect snapshot

	h.Broadcast(startup.Status{Phase: "connecting", Progress: 33})
	ev := readEvent(t, conn)
	assert.Equal(t, "phase", ev.Type)
	assert.Equal(t, "connecting", ev.Status.Phase)
	assert.Equal(t, 33, ev.Status.Progress)
}

func TestHandlerEmitsReadyEvent(t *testing.T) {
	source := &fakeSource{st: startup.Status{Phase: "scanning"}}
	h, conn := newTestHandler(t, source)

	readEvent(t, conn)

	h.Broadcast(startup.Status{Phase: "ready", Progress: 100})
	ev := readEvent(t, conn)
	require.Equal(t, "phase", ev.Type)
	assert.Equal(t, "ready", ev.Status.Phase)

	ev = readEvent(t, conn)
	assert.Equal(t, "ready", ev.Type)
}

func TestHandlerSnapshotAlreadyReady(t *testing.T) {
	// A shell reconnecting after startup finished still gets the ready signal.
	source := &fakeSource{st: startup.Status{Phase: "ready", Progress: 100}}
	_, conn := newTestHandler(t, source)

	ev := readEvent(t, conn)
	require.Equal(t, "phase", ev.Type)
	ev = readEvent(t, conn)
	assert.Equal(t, "ready", ev.Type)
}

func TestHandlerUnsubscribesOnClose(t *testing.T) {
	source := &fakeSource{st: startup.Status{Phase: "scanning"}}
	h, conn := newTestHandler(t, source)

	readEvent(t, conn)
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.subs) == 0
	}, 2*time.Second, 10*time.Millisecond, "subscriber never removed after close")

	// Broadcasting into an empty registry is a no-op.
	h.Broadcast(startup.Status{Phase: "connecting"})
}

func TestHandlerErrorStatusCarriesFailure(t *testing.T) {
	source := &fakeSource{st: startup.Status{Phase: "scanning"}}
	h, conn := newTestHandler(t, source)

	readEvent(t, conn)

	h.Broadcast(startup.Status{
		Phase:    "error",
		Progress: 33,
		Error: &startup.Failure{
			Kind:    startup.KindTimeout,
			Phase:   startup.StageDaemon,
			Message: "daemon never answered",
		},
	})
	ev := readEvent(t, conn)
	require.Equal(t, "phase", ev.Type)
	require.NotNil(t, ev.Status.Error)
	assert.Equal(t, startup.KindTimeout, ev.Status.Error.Kind)
	assert.Equal(t, "daemon never answered", ev.Status.Error.Message)
}
