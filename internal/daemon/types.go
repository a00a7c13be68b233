package daemon

import (
	"fmt"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/kinematics"
)

// NumAntennas is how many antenna position values the daemon reports.
const NumAntennas = 2

// FullState is the daemon's full state document, from GET /state/full and
// from the push stream. Sections the daemon did not include stay nil, so
// "absent" is distinguishable from a zero value. The antenna key really is
// "antennas_position" on the wire.
type FullState struct {
	ControlMode      *string   `json:"control_mode,omitempty"`
	HeadJoints       []float64 `json:"head_joints,omitempty"`
	BodyYaw          *float64  `json:"body_yaw,omitempty"`
	AntennaPositions []float64 `json:"antennas_position,omitempty"`
	HeadPose         []float64 `json:"head_pose,omitempty"`
}

// Validate checks the shape of every present section. Absent sections pass.
func (s FullState) Validate() error {
	if s.HeadJoints != nil && len(s.HeadJoints) != kinematics.NumHeadJoints {
		return fmt.Errorf("head_joints: want %d values, got %d", kinematics.NumHeadJoints, len(s.HeadJoints))
	}
	if s.AntennaPositions != nil && len(s.AntennaPositions) != NumAntennas {
		return fmt.Errorf("antennas_position: want %d values, got %d", NumAntennas, len(s.AntennaPositions))
	}
	if s.HeadPose != nil && len(s.HeadPose) != kinematics.PoseSize {
		return fmt.Errorf("head_pose: want %d values, got %d", kinematics.PoseSize, len(s.HeadPose))
	}
	return nil
}

// Ready reports whether the daemon has finished initializing. The signal is
// the presence of the control_mode key, not its value: a daemon that answers
// "disabled" is initialized, one that omits the key is still booting.
func (s FullState) Ready() bool {
	return s.ControlMode != nil
}

// Renderable reports whether the document carries everything the stability
// gate and the passive joint solve need.
func (s FullState) Renderable() bool {
	return len(s.HeadJoints) == kinematics.NumHeadJoints && len(s.HeadPose) == kinematics.PoseSize
}

// AppInfo is one entry of the daemon's app lists.
type AppInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Version     string `json:"version,omitempty"`
}
