package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/kinematics"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

type solverFunc func(headJoints, headPose []float64) ([]float64, error)

func (f solverFunc) PassiveJoints(headJoints, headPose []float64) ([]float64, error) {
	return f(headJoints, headPose)
}

func renderableState() daemon.FullState {
	return daemon.FullState{
		HeadJoints: make([]float64, kinematics.NumHeadJoints),
		HeadPose: []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		},
	}
}

func newTestGate(buf *daemon.StateBuffer, solver Solver, minFrames uint64) *Gate {
	g := NewGate(buf, solver, minFrames, logging.NewNop(), monitoring.NewMetricsWith(prometheus.NewRegistry()))
	g.checkEvery = 5 * time.Millisecond
	return g
}

func waitResult(t *testing.T, resCh <-chan GateResult) GateResult {
	t.Helper()
	select {
	case res := <-resCh:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("gate did not resolve")
		return GateTimedOut
	}
}

func TestGateStableSolvesPassiveJoints(t *testing.T) {
	buf := daemon.NewStateBuffer()
	g := newTestGate(buf, kinematics.NewSolver(), 2)

	resCh := make(chan GateResult, 1)
	go func() { resCh <- g.Wait(context.Background(), 2*time.Second) }()

	for i := 0; i < 3; i++ {
		time.Sleep(10 * time.Millisecond)
		buf.Publish(renderableState())
	}

	assert.Equal(t, GateStable, waitResult(t, resCh))
	assert.Len(t, buf.PassiveJoints(), kinematics.NumPassiveJoints)
}

func TestGateIgnoresMalformedFrames(t *testing.T) {
	buf := daemon.NewStateBuffer()
	g := newTestGate(buf, kinematics.NewSolver(), 2)

	resCh := make(chan GateResult, 1)
	go func() { resCh <- g.Wait(context.Background(), 150*time.Millisecond) }()

	// Plenty of frames, none carrying a head pose: the version advances but
	// the stream never counts as stable.
	for i := 0; i < 5; i++ {
		time.Sleep(10 * time.Millisecond)
		buf.Publish(daemon.FullState{HeadJoints: make([]float64, kinematics.NumHeadJoints)})
	}

	assert.Equal(t, GateTimedOut, waitResult(t, resCh))
	assert.Empty(t, buf.PassiveJoints())
}

func TestGateTimesOutWithoutFrames(t *testing.T) {
	buf := daemon.NewStateBuffer()
	g := newTestGate(buf, kinematics.NewSolver(), 2)

	start := time.Now()
	res := g.Wait(context.Background(), 100*time.Millisecond)

	assert.Equal(t, GateTimedOut, res)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGateSolverFailureIsNonFatal(t *testing.T) {
	buf := daemon.NewStateBuffer()
	failing := solverFunc(func(_, _ []float64) ([]float64, error) {
		return nil, errors.New("singular configuration")
	})
	g := newTestGate(buf, failing, 1)

	resCh := make(chan GateResult, 1)
	go func() { resCh <- g.Wait(context.Background(), 2*time.Second) }()

	time.Sleep(10 * time.Millisecond)
	buf.Publish(renderableState())

	// The stream is stable; only the derived joints are missing.
	assert.Equal(t, GateStable, waitResult(t, resCh))
	assert.Empty(t, buf.PassiveJoints())
}

func TestGateStopsOnCancel(t *testing.T) {
	buf := daemon.NewStateBuffer()
	g := newTestGate(buf, kinematics.NewSolver(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	resCh := make(chan GateResult, 1)
	go func() { resCh <- g.Wait(ctx, time.Minute) }()

	cancel()
	require.Equal(t, GateTimedOut, waitResult(t, resCh))
}
