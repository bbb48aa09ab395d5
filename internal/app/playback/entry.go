package playback

import (
	"fmt"

	"github.com/osa030/decobox/internal/domain/track"
)

// Entry describes one row of a sequencer snapshot.
type Entry struct {
	Request    track.Request
	Info       track.Info // Zero for pending entries
	NowPlaying bool
}

// String returns the title when known, the source otherwise.
func (e Entry) String() string {
	if e.Info.Title == "" {
		return e.Request.Source
	}
	if e.Info.Uploader == "" {
		return e.Info.Title
	}
	return fmt.Sprintf("%s - %s", e.Info.Title, e.Info.Uploader)
}

// Status summarizes a sequencer.
type Status struct {
	State      State
	Paused     bool
	Volume     float64
	Pending    int
	Capacity   int
	NowPlaying *Entry
}

func entryFor(s *slot, nowPlaying bool) Entry {
	return Entry{
		Request:    s.request,
		Info:       s.handle.Info(),
		NowPlaying: nowPlaying,
	}
}
