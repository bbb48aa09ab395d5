// Package playback provides the serial playback sequencer with a bounded queue.
package playback

// State represents the sequencer state.
type State int

const (
	StateIdle    State = iota // No active track and nothing pending
	StatePlaying              // One active track, queue may be non-empty
	StateStopped              // Slot released, next head not yet evaluated
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
