package startup

// Phase is the startup state machine value. Transitions are forward-only
// except Error, which re-enters Scanning on an explicit retry.
type Phase int

const (
	PhaseScanning Phase = iota
	PhaseConnecting
	PhaseDetectingMovement
	PhaseSyncingStream
	PhaseLoadingApps
	PhaseReady
	PhaseError
)

// String returns the wire representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseDetectingMovement:
		return "detecting_movement"
	case PhaseSyncingStream:
		return "syncing_stream"
	case PhaseLoadingApps:
		return "loading_apps"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// phaseProgress quantizes progress per active phase. The bar only moves when
// a phase exit condition fires, so it never regresses and never creeps past
// the active step. Error keeps the progress of the phase that failed.
var phaseProgress = map[Phase]int{
	PhaseScanning:          0,
	PhaseConnecting:        33,
	PhaseDetectingMovement: 66,
	PhaseSyncingStream:     66,
	PhaseLoadingApps:       100,
	PhaseReady:             100,
}
