package daemon

import "sync"

// StateBuffer holds the newest stream frame behind a version counter.
// Consumers compare versions to tell "new frame arrived" from "same frame
// read twice"; the counter only moves forward.
type StateBuffer struct {
	mu      sync.RWMutex
	version uint64
	state   FullState
	passive []float64
}

// Frame is a read-only snapshot of the buffer.
type Frame struct {
	Version       uint64    `json:"version"`
	State         FullState `json:"state"`
	PassiveJoints []float64 `json:"passive_joints,omitempty"`
}

// NewStateBuffer creates an empty buffer at version zero.
func NewStateBuffer() *StateBuffer {
	return &StateBuffer{}
}

// Publish stores a new frame and advances the version.
func (b *StateBuffer) Publish(state FullState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.version++
}

// Version returns the current frame version. Zero means nothing arrived yet.
func (b *StateBuffer) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Latest returns a copy of the newest frame and its version.
func (b *StateBuffer) Latest() (FullState, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyState(b.state), b.version
}

// SetPassiveJoints stores solved passive joints for the current frame.
// It does not advance the version; solving is enrichment, not a new frame.
func (b *StateBuffer) SetPassiveJoints(joints []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.passive = append([]float64(nil), joints...)
}

// PassiveJoints returns the last solved passive joints, nil before any solve.
func (b *StateBuffer) PassiveJoints() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]float64(nil), b.passive...)
}

// Snapshot returns the full buffer contents for the state endpoint.
func (b *StateBuffer) Snapshot() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Frame{
		Version:       b.version,
		State:         copyState(b.state),
		PassiveJoints: append([]float64(nil), b.passive...),
	}
}

func copyState(s FullState) FullState {
	out := FullState{}
	if s.ControlMode != nil {
		mode := *s.ControlMode
		out.ControlMode = &mode
	}
	if s.BodyYaw != nil {
		yaw := *s.BodyYaw
		out.BodyYaw = &yaw
	}
	if s.HeadJoints != nil {
		out.HeadJoints = append([]float64(nil), s.HeadJoints...)
	}
	if s.AntennaPositions != nil {
		out.AntennaPositions = append([]float64(nil), s.AntennaPositions...)
	}
	if s.HeadPose != nil {
		out.HeadPose = append([]float64(nil), s.HeadPose...)
	}
	return out
}
