package session

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/app/notification"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/session/registry"
	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/domain/voice"
)

// Session is one guild's voice connection and its sequencer.
type Session struct {
	guildID  string
	conn     voice.Conn
	seq      *playback.Sequencer
	store    Store
	registry *registry.BindingRegistry
	cancel   context.CancelFunc
	done     chan struct{}
}

// GuildID returns the session's guild.
func (s *Session) GuildID() string {
	return s.guildID
}

// Binding returns the session's current binding.
func (s *Session) Binding() voice.Binding {
	if b, ok := s.registry.Binding(s.guildID); ok {
		return *b
	}
	return voice.Binding{GuildID: s.guildID}
}

func (s *Session) Enqueue(ctx context.Context, req track.Request) (playback.Placement, error) {
	return s.seq.Enqueue(ctx, req)
}

func (s *Session) Stop(ctx context.Context) error {
	return s.seq.Stop(ctx)
}

func (s *Session) Pause(ctx context.Context) error {
	return s.seq.Pause(ctx)
}

func (s *Session) Resume(ctx context.Context) error {
	return s.seq.Resume(ctx)
}

// SetVolume sets and persists the guild's volume.
func (s *Session) SetVolume(ctx context.Context, fraction float64) error {
	if err := s.seq.SetVolume(ctx, fraction); err != nil {
		return err
	}
	if err := s.store.SaveVolume(ctx, s.guildID, fraction); err != nil {
		zlog.Warn().Err(err).Msgf("session: failed to persist volume: guild=%s", s.guildID)
	}
	return nil
}

func (s *Session) Snapshot(ctx context.Context) ([]playback.Entry, error) {
	return s.seq.Snapshot(ctx)
}

func (s *Session) Status(ctx context.Context) (playback.Status, error) {
	return s.seq.Status(ctx)
}

// pump forwards sequencer events to the notification manager.
func (s *Session) pump(notif *notification.Manager) {
	defer close(s.done)
	for e := range s.seq.Events() {
		if notif == nil {
			continue
		}
		notif.Broadcast(&notification.Notification{
			GuildID:       s.guildID,
			TextChannelID: s.Binding().TextChannelID,
			Event:         e,
		})
	}
}

func (s *Session) close() {
	// Cancel first so a track that is still loading gives up.
	s.cancel()
	s.seq.Close()
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		zlog.Warn().Msgf("session: event pump did not drain: guild=%s", s.guildID)
	}
}
