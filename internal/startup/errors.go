package startup

import (
	"errors"
	"fmt"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
)

var (
	// ErrNotInError is returned by Retry when no error screen is showing.
	ErrNotInError = errors.New("startup is not in an error state")
	// ErrClosed is returned once the orchestrator has been torn down.
	ErrClosed = errors.New("startup orchestrator is closed")
)

// ErrorKind classifies a terminal startup failure.
type ErrorKind string

const (
	KindTimeout  ErrorKind = "timeout"
	KindHardware ErrorKind = "hardware"
)

// Stage tags which wait a timeout failure came from.
type Stage string

const (
	StageDaemon   Stage = "daemon"
	StageMovement Stage = "movement"
)

// Failure is the terminal error surfaced to the UI. Phase is set for
// timeouts only; hardware faults are stage-less.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Phase   Stage     `json:"phase,omitempty"`
	Message string    `json:"message"`
}

func (f *Failure) Error() string {
	if f.Phase != "" {
		return fmt.Sprintf("startup %s (%s): %s", f.Kind, f.Phase, f.Message)
	}
	return fmt.Sprintf("startup %s: %s", f.Kind, f.Message)
}

// timeoutMessages selects remediation text by transport mode and timed-out
// stage. The same failure needs different user guidance per transport: a
// dead USB link and a dead WiFi link are fixed differently.
var timeoutMessages = map[string]map[Stage]string{
	config.TransportUSB: {
		StageDaemon:   "Could not reach the robot daemon over USB. Check that the cable is firmly seated and the robot is powered on, then retry.",
		StageMovement: "The robot daemon is running but no telemetry is arriving over USB. Try a different cable or USB port, then retry.",
	},
	config.TransportWiFi: {
		StageDaemon:   "Could not reach the robot over WiFi. Make sure the robot and this computer are on the same network, then retry.",
		StageMovement: "Connected to the robot over WiFi but no telemetry is arriving. Move closer to the robot or check the network signal, then retry.",
	},
	config.TransportSimulation: {
		StageDaemon:   "The simulated daemon did not come up. Check the daemon logs for a crashed process, then retry.",
		StageMovement: "The simulated robot is not publishing telemetry. Check the daemon logs, then retry.",
	},
}

// TimeoutFailure builds the failure for a stage whose wait budget expired.
func TimeoutFailure(stage Stage, transport string) *Failure {
	msg := timeoutMessages[transport][stage]
	if msg == "" {
		msg = fmt.Sprintf("Startup timed out waiting for the %s stage. Retry to restart the sequence.", stage)
	}
	return &Failure{Kind: KindTimeout, Phase: stage, Message: msg}
}

// HardwareFailure builds the failure for an externally reported hardware
// fault.
func HardwareFailure(message string) *Failure {
	if message == "" {
		message = "A hardware fault was reported. Check the robot, then retry."
	}
	return &Failure{Kind: KindHardware, Message: message}
}
