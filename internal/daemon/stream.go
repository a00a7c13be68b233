package daemon

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second
)

// StreamClient mirrors the daemon's push channel into a StateBuffer.
// Frames arrive at high frequency, so decoding uses sonic instead of
// encoding/json.
type StreamClient struct {
	url     string
	buf     *StateBuffer
	log     *logging.Logger
	metrics *monitoring.Metrics
	dialer  *websocket.Dialer
}

// NewStreamClient creates a stream client publishing into buf.
func NewStreamClient(url string, buf *StateBuffer, log *logging.Logger, metrics *monitoring.Metrics) *StreamClient {
	return &StreamClient{
		url:     url,
		buf:     buf,
		log:     log.Named("stream"),
		metrics: metrics,
		dialer:  websocket.DefaultDialer,
	}
}

// Run connects and pumps frames until ctx is cancelled, reconnecting with
// capped backoff. A dead stream stalls the stability gate but never fails
// startup by itself, so Run reports nothing.
func (s *StreamClient) Run(ctx context.Context) {
	backoff := initialBackoff

	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err == nil {
			backoff = initialBackoff
			s.pump(ctx, conn)
		} else {
			s.log.Debug("stream dial failed", zap.String("url", s.url), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		s.metrics.IncStreamReconnects()
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

// pump reads frames until the connection breaks or ctx is cancelled.
func (s *StreamClient) pump(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.log.Debug("stream read failed", zap.Error(err))
			}
			return
		}

		var frame FullState
		if err := sonic.Unmarshal(data, &frame); err != nil {
			s.log.Debug("stream frame decode failed", zap.Error(err))
			continue
		}
		if err := frame.Validate(); err != nil {
			s.log.Debug("stream frame malformed", zap.Error(err))
			continue
		}

		s.buf.Publish(frame)
		s.metrics.IncStreamFrames()
	}
}
