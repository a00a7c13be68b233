package startup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
)

func staticSample() Sample {
	return Sample{
		HeadJoints: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7},
		BodyYaw:    0.25,
		Antennas:   []float64{1.0, -1.0},
	}
}

func TestDetectorNeedsBaseline(t *testing.T) {
	d := NewDetector(0.001, 2)
	assert.False(t, d.Observe(staticSample()))
}

func TestDetectorValueDelta(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Sample)
	}{
		{"head joint", func(s *Sample) { s.HeadJoints[3] += 0.01 }},
		{"body yaw", func(s *Sample) { s.BodyYaw += 0.01 }},
		{"antenna", func(s *Sample) { s.Antennas[1] += 0.01 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(0.001, 10)
			assert.False(t, d.Observe(staticSample()))

			moved := staticSample()
			tt.mutate(&moved)
			assert.True(t, d.Observe(moved))
		})
	}
}

func TestDetectorDeltaAtToleranceIsStill(t *testing.T) {
	// 0.5 and 0.25 are exact in binary, so the delta lands exactly on the
	// boundary. Movement requires strictly more than the tolerance.
	d := NewDetector(0.5, 10)
	d.Observe(staticSample())

	nudged := staticSample()
	nudged.BodyYaw += 0.5

	assert.False(t, d.Observe(nudged))
}

func TestDetectorConsecutiveReadsCountAsAlive(t *testing.T) {
	d := NewDetector(0.001, 2)

	assert.False(t, d.Observe(staticSample()))
	// Identical sample: no delta, but two consecutive valid reads mean the
	// stream is alive even though the robot is still.
	assert.True(t, d.Observe(staticSample()))
}

func TestDetectorInvalidBreaksStreak(t *testing.T) {
	d := NewDetector(0.001, 2)

	assert.False(t, d.Observe(staticSample()))
	d.Invalid()

	// Streak restarted: one valid read is not enough.
	assert.False(t, d.Observe(staticSample()))
	assert.True(t, d.Observe(staticSample()))
}

func TestDetectorReset(t *testing.T) {
	d := NewDetector(0.001, 2)
	d.Observe(staticSample())
	d.Observe(staticSample())

	d.Reset()

	assert.False(t, d.Observe(staticSample()))
}

func TestSampleFrom(t *testing.T) {
	yaw := 0.25
	full := daemon.FullState{
		HeadJoints:       make([]float64, 7),
		BodyYaw:          &yaw,
		AntennaPositions: make([]float64, 2),
	}

	s, ok := SampleFrom(full)
	assert.True(t, ok)
	assert.Equal(t, 0.25, s.BodyYaw)
	assert.Len(t, s.HeadJoints, 7)
	assert.False(t, s.At.IsZero())

	tests := []struct {
		name  string
		state daemon.FullState
	}{
		{"empty", daemon.FullState{}},
		{"missing yaw", daemon.FullState{HeadJoints: make([]float64, 7), AntennaPositions: make([]float64, 2)}},
		{"short joints", daemon.FullState{HeadJoints: make([]float64, 3), BodyYaw: &yaw, AntennaPositions: make([]float64, 2)}},
		{"missing antennas", daemon.FullState{HeadJoints: make([]float64, 7), BodyYaw: &yaw}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := SampleFrom(tt.state)
			assert.False(t, ok)
		})
	}
}
