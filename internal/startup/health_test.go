package startup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

type fetcherFunc func(ctx context.Context) (daemon.FullState, error)

func (f fetcherFunc) FullState(ctx context.Context) (daemon.FullState, error) {
	return f(ctx)
}

func newTestPoller(f fetcherFunc) *HealthPoller {
	return NewHealthPoller(f, logging.NewNop(), monitoring.NewMetricsWith(prometheus.NewRegistry()))
}

func TestHealthPollerReady(t *testing.T) {
	mode := "disabled"
	p := newTestPoller(func(context.Context) (daemon.FullState, error) {
		return daemon.FullState{ControlMode: &mode}, nil
	})

	r, polled := p.Poll(context.Background())
	require.True(t, polled)
	// "disabled" still counts: the key being present is the signal.
	assert.True(t, r.Ready)
	assert.Equal(t, "disabled", r.ControlMode)
}

func TestHealthPollerNotReadyWithoutControlMode(t *testing.T) {
	p := newTestPoller(func(context.Context) (daemon.FullState, error) {
		return daemon.FullState{HeadJoints: make([]float64, 7)}, nil
	})

	r, polled := p.Poll(context.Background())
	require.True(t, polled)
	assert.False(t, r.Ready)
	assert.Empty(t, r.ControlMode)
}

func TestHealthPollerErrorMeansNotReady(t *testing.T) {
	p := newTestPoller(func(context.Context) (daemon.FullState, error) {
		return daemon.FullState{}, errors.New("connection refused")
	})

	r, polled := p.Poll(context.Background())
	require.True(t, polled)
	assert.False(t, r.Ready)
}

func TestHealthPollerSkipsOverlappingPolls(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	var calls atomic.Int32
	p := newTestPoller(func(context.Context) (daemon.FullState, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
		return daemon.FullState{}, nil
	})

	go func() {
		defer close(done)
		p.Poll(context.Background())
	}()
	<-started

	_, polled := p.Poll(context.Background())
	assert.False(t, polled)

	close(release)
	<-done

	// The guard clears once the slow poll finishes.
	_, polled = p.Poll(context.Background())
	assert.True(t, polled)
}
