package engine

// State is the sync loop's lifecycle position.
type State int32

// Loop states. Running is entered once startup succeeds; the loop then
// alternates between PassInProgress and Sleeping until it stops.
const (
	StateIdle State = iota
	StateRunning
	StatePassInProgress
	StateSleeping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePassInProgress:
		return "pass-in-progress"
	case StateSleeping:
		return "sleeping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
