package notification

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/infra/metrics"
)

const announceKey = "auto_playlist_data"

// Sender posts chat messages.
type Sender interface {
	Send(ctx context.Context, channelID, content string) error
}

// Templates renders voice plugin messages.
type Templates interface {
	Format(key string, index int, args ...any) string
}

// Announcer posts playback events to the bound text channel and records
// playback metrics. Messages are sent in event order.
type Announcer struct {
	sender    Sender
	templates Templates
	metrics   *metrics.Metrics
	queue     chan *Notification
	log       zerolog.Logger
}

// NewAnnouncer creates an announcer. m may be nil.
func NewAnnouncer(sender Sender, templates Templates, m *metrics.Metrics) *Announcer {
	return &Announcer{
		sender:    sender,
		templates: templates,
		metrics:   m,
		queue:     make(chan *Notification, 64),
		log:       zlog.With().Str("component", "announcer").Logger(),
	}
}

// Send queues a notification. It never blocks.
func (a *Announcer) Send(n *Notification) error {
	a.record(n)
	select {
	case a.queue <- n:
		return nil
	default:
		a.log.Warn().Msgf("announcer: queue full, dropping %s for guild %s", n.Event.Type, n.GuildID)
		return errors.New("announcer queue full")
	}
}

// Run posts queued notifications until ctx is done.
func (a *Announcer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-a.queue:
			content, ok := a.Render(n.Event)
			if !ok || n.TextChannelID == "" {
				continue
			}
			if err := a.sender.Send(ctx, n.TextChannelID, content); err != nil {
				if errors.Is(err, chat.ErrForbidden) {
					a.log.Debug().Msgf("announcer: not allowed to post in %s", n.TextChannelID)
					continue
				}
				a.log.Warn().Err(err).Msgf("announcer: failed to post %s", n.Event.Type)
			}
		}
	}
}

// Render returns the chat message for an event, if it gets one.
// Starts and empty queues caused by a command are answered by that command.
func (a *Announcer) Render(e playback.Event) (string, bool) {
	switch e.Type {
	case playback.EventTrackStarted:
		if !e.Auto {
			return "", false
		}
		return a.templates.Format(announceKey, 2, a.Describe(e.Info)), true
	case playback.EventTrackFinished:
		if e.Err != nil {
			return a.templates.Format(announceKey, 4, title(e), e.Err.Error()), true
		}
		return a.templates.Format(announceKey, 0, title(e)), true
	case playback.EventTrackFailed:
		return a.templates.Format(announceKey, 3, e.Request.Source, errText(e.Err)), true
	case playback.EventQueueEmpty:
		if !e.Auto {
			return "", false
		}
		return a.templates.Format(announceKey, 5), true
	default:
		return "", false
	}
}

// Describe renders the track descriptor used in announcements.
func (a *Announcer) Describe(info track.Info) string {
	m, s := info.Clock()
	return a.templates.Format(announceKey, 1, info.Title, info.Uploader, m, fmt.Sprintf("%02d", s))
}

func (a *Announcer) record(n *Notification) {
	if a.metrics == nil {
		return
	}
	a.metrics.QueueLength.Observe(float64(n.Event.Pending), n.GuildID)
	switch n.Event.Type {
	case playback.EventTrackStarted:
		a.metrics.TracksStarted.Observe(1)
	case playback.EventTrackFailed:
		a.metrics.TracksFailed.Observe(1, FailureReason(n.Event.Err))
	}
}

// FailureReason names the start failure kind of err.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, track.ErrUnsupportedSource):
		return "unsupported"
	case errors.Is(err, track.ErrExtractionFailed):
		return "extraction"
	case errors.Is(err, track.ErrDownloadFailed):
		return "download"
	case errors.Is(err, track.ErrNetworkFailed):
		return "network"
	default:
		return "other"
	}
}

func title(e playback.Event) string {
	if e.Info.Title != "" {
		return e.Info.Title
	}
	return e.Request.Source
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
