package startup

import (
	"math"
	"sync"
	"time"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/kinematics"
)

// Sample is one movement observation built from a telemetry poll.
type Sample struct {
	HeadJoints       []float64
	BodyYaw          float64
	Antennas         []float64
	ConsecutiveValid int
	At               time.Time
}

// SampleFrom extracts a movement sample from a full state snapshot. A state
// missing any of the three telemetry sections is not a valid sample.
func SampleFrom(st daemon.FullState) (Sample, bool) {
	if len(st.HeadJoints) != kinematics.NumHeadJoints || st.BodyYaw == nil || len(st.AntennaPositions) != daemon.NumAntennas {
		return Sample{}, false
	}
	s := Sample{
		HeadJoints: append([]float64(nil), st.HeadJoints...),
		BodyYaw:    *st.BodyYaw,
		Antennas:   append([]float64(nil), st.AntennaPositions...),
		At:         time.Now(),
	}
	return s, true
}

// Detector decides whether live telemetry shows the robot moving. Movement
// is either a per-field delta beyond the tolerance, or enough consecutive
// valid reads: a physically still robot must not be mistaken for a dead
// stream. Only the last sample is retained.
type Detector struct {
	tolerance float64
	minReads  int

	mu    sync.Mutex
	valid int
	prev  *Sample
}

// NewDetector creates a detector. tolerance is the per-field absolute delta
// that counts as movement; minReads is the consecutive-valid-read count that
// counts as a live stream.
func NewDetector(tolerance float64, minReads int) *Detector {
	if minReads < 1 {
		minReads = 1
	}
	return &Detector{tolerance: tolerance, minReads: minReads}
}

// Observe folds one valid sample and reports movement. The first sample is
// the baseline and never reports movement.
func (d *Detector) Observe(s Sample) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.valid++
	s.ConsecutiveValid = d.valid
	prev := d.prev
	d.prev = &s

	if prev == nil {
		return false
	}
	if exceeds(s.HeadJoints, prev.HeadJoints, d.tolerance) ||
		math.Abs(s.BodyYaw-prev.BodyYaw) > d.tolerance ||
		exceeds(s.Antennas, prev.Antennas, d.tolerance) {
		return true
	}
	return s.ConsecutiveValid >= d.minReads
}

// Invalid records a failed or malformed read. It breaks the consecutive-read
// streak but keeps the last valid sample as the comparison baseline.
func (d *Detector) Invalid() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = 0
}

// Reset discards the baseline for a fresh run.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.valid = 0
	d.prev = nil
}

func exceeds(a, b []float64, tolerance float64) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tolerance {
			return true
		}
	}
	return false
}
