package startup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

// GateResult reports how the stream sync ended. Both outcomes let startup
// proceed; the caller only logs the degraded one.
type GateResult int

const (
	GateStable GateResult = iota
	GateTimedOut
)

func (r GateResult) String() string {
	switch r {
	case GateStable:
		return "stable"
	case GateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Solver computes the passive joint angles from live head telemetry.
type Solver interface {
	PassiveJoints(headJoints, headPose []float64) ([]float64, error)
}

// Gate waits for the push stream to settle before the live UI takes over:
// enough new frames since entry, each carrying well-shaped head joints and
// head pose. On success it solves the passive joints and writes them back
// into the buffer so the first rendered frame is complete.
type Gate struct {
	buf       *daemon.StateBuffer
	solver    Solver
	minFrames uint64
	// checkEvery is how often the buffer version is sampled. The stream
	// pushes on its own; the gate only observes.
	checkEvery time.Duration
	log        *logging.Logger
	metrics    *monitoring.Metrics
}

// NewGate creates a gate over the shared state buffer.
func NewGate(buf *daemon.StateBuffer, solver Solver, minFrames uint64, log *logging.Logger, metrics *monitoring.Metrics) *Gate {
	if minFrames == 0 {
		minFrames = 1
	}
	return &Gate{
		buf:        buf,
		solver:     solver,
		minFrames:  minFrames,
		checkEvery: 100 * time.Millisecond,
		log:        log.Named("gate"),
		metrics:    metrics,
	}
}

// Wait blocks until the stream has delivered minFrames new frames since
// entry and the latest is renderable, then solves and stores the passive
// joints. On timeout it returns GateTimedOut without error: proceeding
// without the derived joints beats blocking startup indefinitely.
func (g *Gate) Wait(ctx context.Context, timeout time.Duration) GateResult {
	start := g.buf.Version()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(g.checkEvery)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return GateTimedOut
		case <-deadline.C:
			g.metrics.RecordGateResult("timed_out")
			g.log.Warn("stream never stabilized",
				zap.Uint64("frames_seen", g.buf.Version()-start),
				zap.Uint64("frames_wanted", g.minFrames),
			)
			return GateTimedOut
		case <-tick.C:
			state, version := g.buf.Latest()
			if version < start+g.minFrames || !state.Renderable() {
				continue
			}
			g.solve(state)
			g.metrics.RecordGateResult("stable")
			return GateStable
		}
	}
}

// solve computes passive joints and writes them back. Failure is non-fatal:
// it degrades the 3D view, it must not block startup.
func (g *Gate) solve(st daemon.FullState) {
	passive, err := g.solver.PassiveJoints(st.HeadJoints, st.HeadPose)
	if err != nil {
		g.log.Warn("passive joint solve failed", zap.Error(err))
		g.metrics.RecordKinematicsSolve("error")
		return
	}
	g.buf.SetPassiveJoints(passive)
	g.metrics.RecordKinematicsSolve("ok")
}
