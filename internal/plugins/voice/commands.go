package voice

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/domain/track"
)

const playlistSlots = 10

func (p *Plugin) join(ctx context.Context, inv *plugin.Invocation) error {
	msg := inv.Message
	if msg.IsDirect() {
		return nil
	}

	s, err := p.sessions.Join(ctx, msg.GuildID, msg.AuthorID, msg.ChannelID)
	switch {
	case errors.Is(err, session.ErrAlreadyJoined):
		guild := msg.GuildID
		if b, ok := p.sessions.Binding(msg.GuildID); ok {
			guild = b.GuildName
		}
		return inv.Reply(ctx, p.texts.Format(joinKey, 0, guild))
	case errors.Is(err, session.ErrUserNotInVoice):
		return inv.Reply(ctx, p.texts.Get(joinKey, 3))
	case err != nil:
		p.log.Warn().Err(err).Msgf("voice: join failed: guild=%s", msg.GuildID)
		return inv.Reply(ctx, p.texts.Format(joinKey, 2, err.Error()))
	}
	return inv.Reply(ctx, p.texts.Format(joinKey, 1, s.Binding().VoiceChannelName))
}

func (p *Plugin) play(ctx context.Context, inv *plugin.Invocation) error {
	s, ok := p.sessions.Get(inv.Message.GuildID)
	if !ok {
		return inv.Reply(ctx, p.texts.Get(playKey, 8))
	}

	source := filter.CleanSource(inv.Args)
	req := track.NewRequest(source, track.Requester{
		ID:   inv.Message.AuthorID,
		Name: inv.Message.AuthorName,
		Type: track.RequesterTypeUser,
	}, inv.Message.ChannelID)

	placement, err := s.Enqueue(ctx, req)
	if err != nil {
		return inv.Reply(ctx, p.playError(source, err))
	}
	if !placement.Started {
		return inv.Reply(ctx, p.texts.Format(playKey, 3, placement.Position, source))
	}

	status, err := s.Status(ctx)
	if err != nil || status.NowPlaying == nil {
		// The track already ended; its completion is announced.
		return err
	}
	return inv.Reply(ctx, p.describe(playKey, 1, status.NowPlaying.Info))
}

func (p *Plugin) playError(source string, err error) string {
	switch {
	case errors.Is(err, playback.ErrEmptyRequest):
		return p.texts.Get(playKey, 0)
	case errors.Is(err, playback.ErrDuplicate):
		return p.texts.Format(playKey, 10, source)
	case errors.Is(err, playback.ErrCapacity):
		return p.texts.Get(playKey, 11)
	case errors.Is(err, track.ErrUnsupportedSource):
		return p.texts.Format(playKey, 5, source)
	case errors.Is(err, track.ErrExtractionFailed):
		return p.texts.Format(playKey, 6, source)
	case errors.Is(err, track.ErrDownloadFailed):
		return p.texts.Format(playKey, 7, source)
	case errors.Is(err, track.ErrNetworkFailed):
		return p.texts.Format(playKey, 4, source)
	default:
		p.log.Warn().Err(err).Msgf("voice: play failed: source=%s", source)
		return p.texts.Format(playKey, 9, source, err.Error())
	}
}

// describe renders a template taking title, uploader, minutes and
// zero padded seconds.
func (p *Plugin) describe(key string, index int, info track.Info) string {
	m, s := info.Clock()
	return p.texts.Format(key, index, info.Title, info.Uploader, m, fmt.Sprintf("%02d", s))
}

func (p *Plugin) stop(ctx context.Context, inv *plugin.Invocation) error {
	s, ok := p.sessions.Get(inv.Message.GuildID)
	if !ok {
		return inv.Reply(ctx, p.texts.Get(stopKey, 1))
	}

	before, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if before.NowPlaying == nil {
		return inv.Reply(ctx, p.texts.Get(stopKey, 3))
	}
	if err := s.Stop(ctx); err != nil {
		return err
	}
	if err := inv.Reply(ctx, p.texts.Format(stopKey, 0, titleOf(before.NowPlaying))); err != nil {
		return err
	}

	after, err := s.Status(ctx)
	if err != nil || after.NowPlaying == nil {
		return err
	}
	return inv.Reply(ctx, p.texts.Format(stopKey, 2, titleOf(after.NowPlaying)))
}

func titleOf(e *playback.Entry) string {
	if e.Info.Title != "" {
		return e.Info.Title
	}
	return e.Request.Source
}

func (p *Plugin) pause(ctx context.Context, inv *plugin.Invocation) error {
	return p.toggle(ctx, inv, pauseKey, (*session.Session).Pause)
}

func (p *Plugin) unpause(ctx context.Context, inv *plugin.Invocation) error {
	return p.toggle(ctx, inv, unpauseKey, (*session.Session).Resume)
}

func (p *Plugin) toggle(ctx context.Context, inv *plugin.Invocation, key string, apply func(*session.Session, context.Context) error) error {
	s, ok := p.sessions.Get(inv.Message.GuildID)
	if !ok {
		return inv.Reply(ctx, p.texts.Get(key, 2))
	}

	err := apply(s, ctx)
	if errors.Is(err, playback.ErrNotPlaying) {
		return inv.Reply(ctx, p.texts.Get(key, 1))
	}
	if err != nil {
		return err
	}

	status, err := s.Status(ctx)
	if err != nil {
		return err
	}
	if status.NowPlaying == nil {
		return inv.Reply(ctx, p.texts.Get(key, 1))
	}
	m, sec := status.NowPlaying.Info.Clock()
	return inv.Reply(ctx, p.texts.Format(key, 0, titleOf(status.NowPlaying), m, fmt.Sprintf("%02d", sec)))
}

func (p *Plugin) move(ctx context.Context, inv *plugin.Invocation) error {
	if inv.Message.IsDirect() {
		return nil
	}
	b, err := p.sessions.Move(ctx, inv.Message.GuildID, inv.Message.AuthorID)
	switch {
	case errors.Is(err, session.ErrNotJoined):
		return inv.Reply(ctx, p.texts.Get(moveKey, 3))
	case errors.Is(err, session.ErrUserNotInVoice), errors.Is(err, session.ErrSameChannel):
		return inv.Reply(ctx, p.texts.Get(moveKey, 2))
	case err != nil:
		p.log.Warn().Err(err).Msgf("voice: move failed: guild=%s", inv.Message.GuildID)
		return inv.Reply(ctx, p.texts.Format(moveKey, 1, err.Error()))
	}
	return inv.Reply(ctx, p.texts.Format(moveKey, 0, b.VoiceChannelName))
}

func (p *Plugin) leave(ctx context.Context, inv *plugin.Invocation) error {
	if inv.Message.IsDirect() {
		return nil
	}
	b, err := p.sessions.Leave(ctx, inv.Message.GuildID)
	if errors.Is(err, session.ErrNotJoined) {
		return inv.Reply(ctx, p.texts.Get(leaveKey, 1))
	}
	if err != nil {
		return err
	}
	return inv.Reply(ctx, p.texts.Format(leaveKey, 0, b.VoiceChannelName))
}

func (p *Plugin) playlist(ctx context.Context, inv *plugin.Invocation) error {
	s, ok := p.sessions.Get(inv.Message.GuildID)
	if !ok {
		return inv.Reply(ctx, p.texts.Get(playlistKey, 2))
	}
	entries, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	empty := p.texts.Get(playlistKey, 0)
	slots := make([]any, playlistSlots)
	for i := range slots {
		slots[i] = empty
		if i < len(entries) {
			slots[i] = entries[i].String()
		}
	}
	return inv.Reply(ctx, p.texts.Format(playlistKey, 1, slots...))
}

func (p *Plugin) volume(ctx context.Context, inv *plugin.Invocation) error {
	s, ok := p.sessions.Get(inv.Message.GuildID)
	if !ok {
		return inv.Reply(ctx, p.texts.Get(playKey, 8))
	}

	arg := strings.TrimSuffix(strings.TrimSpace(inv.Args), "%")
	percent, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return inv.Reply(ctx, p.texts.Get(volumeKey, 2))
	}

	err = s.SetVolume(ctx, percent/100)
	switch {
	case errors.Is(err, playback.ErrNotPlaying):
		return inv.Reply(ctx, p.texts.Get(volumeKey, 3))
	case errors.Is(err, playback.ErrOutOfRange):
		return inv.Reply(ctx, p.texts.Get(volumeKey, 1))
	case err != nil:
		return err
	}
	return inv.Reply(ctx, p.texts.Format(volumeKey, 0, strconv.FormatFloat(percent, 'f', -1, 64)))
}
