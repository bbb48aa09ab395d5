// Package track provides the track request and playback handle domain types.
package track

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Start failures reported by a Player when a track cannot be loaded.
var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrDownloadFailed    = errors.New("download failed")
	ErrNetworkFailed     = errors.New("network failure")
)

// RequesterType represents the type of requester.
type RequesterType string

const (
	RequesterTypeUser   RequesterType = "USER"
	RequesterTypeAdmin  RequesterType = "ADMIN"
	RequesterTypeSystem RequesterType = "SYSTEM"
)

// Requester represents the person who requested the track.
type Requester struct {
	ID   string        // Chat user ID
	Name string        // Display name
	Type RequesterType // Type of requester
}

// Request is a pending playback request.
// Its identity is the Source string.
type Request struct {
	Source      string    // URL or extractor search string
	Requester   Requester // Requester info
	ChannelID   string    // Text channel the request came from
	RequestedAt time.Time // Time when requested
}

// NewRequest creates a request stamped with the current time.
func NewRequest(source string, requester Requester, channelID string) Request {
	return Request{
		Source:      source,
		Requester:   requester,
		ChannelID:   channelID,
		RequestedAt: time.Now(),
	}
}

// Info is the metadata a Handle exposes once its source is resolved.
type Info struct {
	Title    string
	Uploader string
	Duration time.Duration
	URL      string
}

// Clock splits the duration into minutes and seconds the way announcements
// print them. Minutes wrap at one hour.
func (i Info) Clock() (minutes int, seconds int) {
	total := int(i.Duration / time.Second)
	return (total / 60) % 60, total % 60
}

// ClockString returns the "M:SS" rendering of the duration.
func (i Info) ClockString() string {
	m, s := i.Clock()
	return fmt.Sprintf("%d:%02d", m, s)
}

// Handle is an active playback resource owned by the audio layer.
type Handle interface {
	ID() string
	Info() Info
	Start() error
	Stop()
	Pause()
	Resume()
	SetVolume(v float64)
}

// IsStartFailure reports whether err is one of the start failure kinds.
func IsStartFailure(err error) bool {
	return errors.Is(err, ErrUnsupportedSource) ||
		errors.Is(err, ErrExtractionFailed) ||
		errors.Is(err, ErrDownloadFailed) ||
		errors.Is(err, ErrNetworkFailed)
}
