package playback

import "github.com/osa030/decobox/internal/domain/track"

// EventType represents a sequencer event type.
type EventType int

const (
	EventTrackStarted  EventType = iota // Track started playing
	EventTrackFinished                  // Track completed on its own (Err set on playback error)
	EventTrackStopped                   // Track was stopped explicitly
	EventTrackFailed                    // Track could not be started and was discarded
	EventStateChanged                   // Pause, resume or volume changed
	EventQueueEmpty                     // Nothing left to play
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackStarted:
		return "track_started"
	case EventTrackFinished:
		return "track_finished"
	case EventTrackStopped:
		return "track_stopped"
	case EventTrackFailed:
		return "track_failed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueEmpty:
		return "queue_empty"
	default:
		return "unknown"
	}
}

// Event represents a sequencer event.
type Event struct {
	Type    EventType
	Request track.Request // Request the event is about (zero for queue_empty)
	Info    track.Info    // Resolved metadata, when a handle existed
	Err     error         // Start or playback error
	State   State         // State after the event
	Paused  bool
	Volume  float64
	Pending int  // Queue length after the event
	Auto    bool // Caused by a track completing rather than a command
}
