package startup

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

// StateFetcher is the slice of the daemon client the poller needs.
type StateFetcher interface {
	FullState(ctx context.Context) (daemon.FullState, error)
}

// Readiness is one health poll result. Ready requires the control_mode key
// to be present in the response, whatever its value.
type Readiness struct {
	Ready       bool
	ControlMode string
	State       daemon.FullState
}

// HealthPoller wraps the daemon client with never-fails polling semantics.
// A failed request is "not ready", not an error; the orchestrator owns the
// give-up budget.
type HealthPoller struct {
	client   StateFetcher
	log      *logging.Logger
	metrics  *monitoring.Metrics
	inFlight atomic.Bool
}

// NewHealthPoller creates a poller over the given fetcher.
func NewHealthPoller(client StateFetcher, log *logging.Logger, metrics *monitoring.Metrics) *HealthPoller {
	return &HealthPoller{
		client:  client,
		log:     log.Named("health"),
		metrics: metrics,
	}
}

// Poll issues one health check. polled is false when a previous poll was
// still in flight: the tick is skipped rather than queued, so a slow
// transport never piles up requests.
func (p *HealthPoller) Poll(ctx context.Context) (r Readiness, polled bool) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.RecordDaemonPoll("skipped")
		return Readiness{}, false
	}
	defer p.inFlight.Store(false)

	st, err := p.client.FullState(ctx)
	if err != nil {
		p.log.Debug("daemon poll failed", zap.Error(err))
		p.metrics.RecordDaemonPoll("error")
		return Readiness{}, true
	}
	p.metrics.RecordDaemonPoll("ok")

	r = Readiness{Ready: st.Ready(), State: st}
	if st.ControlMode != nil {
		r.ControlMode = *st.ControlMode
	}
	return r, true
}
