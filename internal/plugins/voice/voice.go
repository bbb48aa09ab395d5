// Package voice provides the voice channel music commands.
package voice

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/osa030/decobox/internal/app/notification"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/infra/logger"
	"github.com/osa030/decobox/internal/infra/text"
)

// Name is the plugin and template table name.
const Name = "voice"

const (
	joinKey     = "join_voice_channel_command_data"
	playKey     = "play_command_data"
	stopKey     = "stop_command_data"
	pauseKey    = "pause_command_data"
	unpauseKey  = "unpause_command_data"
	moveKey     = "move_command_data"
	leaveKey    = "leave_voice_channel_command_data"
	playlistKey = "playlist_command_data"
	volumeKey   = "volume_command_data"
	unloadKey   = "reload_commands_voice_channels_bypass1"
	rejoinKey   = "reload_commands_voice_channels_bypass2"
)

var errUnavailable = errors.New("voice sessions are not available")

func init() {
	plugin.Register(Name, "voice channel music playback", New)
}

// Plugin implements the voice commands on top of the session manager.
type Plugin struct {
	host     *plugin.Host
	sessions *session.Manager
	texts    *text.Messages
	log      zerolog.Logger

	announcer      *notification.Announcer
	subscriptionID string
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}

// New creates the voice plugin.
func New(host *plugin.Host) plugin.Plugin {
	return &Plugin{
		host:     host,
		sessions: host.Sessions,
		texts:    host.Texts.For(Name),
		log:      logger.For("voice"),
	}
}

func (p *Plugin) Name() string {
	return Name
}

func (p *Plugin) Commands() []plugin.Command {
	return []plugin.Command{
		{Name: "JoinVoiceChannel", Handler: p.join},
		{Name: "play", NeedsBinding: true, TakesSource: true, Handler: p.play, Rejected: p.rejected(playKey, 8, playKey, 2)},
		{Name: "stop", NeedsBinding: true, Handler: p.stop, Rejected: p.rejected(stopKey, 1, playKey, 2)},
		{Name: "pause", NeedsBinding: true, Handler: p.pause, Rejected: p.rejected(pauseKey, 2, playKey, 2)},
		{Name: "unpause", NeedsBinding: true, Handler: p.unpause, Rejected: p.rejected(unpauseKey, 2, playKey, 2)},
		{Name: "move", Handler: p.move},
		{Name: "LeaveVoiceChannel", Handler: p.leave},
		{Name: "Playlist", NeedsBinding: true, Handler: p.playlist, Rejected: p.rejected(playlistKey, 2, playKey, 2)},
		{Name: "vol", NeedsBinding: true, Handler: p.volume, Rejected: p.rejected(playKey, 8, volumeKey, 4)},
	}
}

// rejected maps filter codes to replies. The not_joined and wrong_channel
// replies are given as template key and index.
func (p *Plugin) rejected(notJoinedKey string, notJoined int, wrongKey string, wrong int) func(*plugin.Invocation, string) string {
	return func(inv *plugin.Invocation, code string) string {
		switch code {
		case "not_joined":
			return p.texts.Get(notJoinedKey, notJoined)
		case "wrong_channel":
			return p.texts.Get(wrongKey, wrong)
		case "empty_source":
			return p.texts.Get(playKey, 0)
		case "unsupported_source", "source_too_long":
			return p.texts.Format(playKey, 5, inv.Args)
		}
		return ""
	}
}

// Load starts announcing playback events.
func (p *Plugin) Load(ctx context.Context) error {
	if p.sessions == nil {
		return errUnavailable
	}

	p.announcer = notification.NewAnnouncer(p.host.Sender, p.texts, p.host.Metrics)
	p.subscriptionID = p.sessions.Notifications().Subscribe(p.announcer)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.announcer.Run(runCtx); err != nil {
			p.log.Error().Err(err).Msg("voice: announcer stopped")
		}
	}()
	return nil
}

// Unload leaves every voice channel. Bindings stay persisted so the
// sessions are restored when the plugin is loaded again.
func (p *Plugin) Unload(ctx context.Context) error {
	reason := p.texts.Get(unloadKey, 1)
	for _, s := range p.sessions.Sessions() {
		b := s.Binding()
		p.send(ctx, b.TextChannelID, p.texts.Format(unloadKey, 0, b.VoiceChannelName, reason))
	}
	left := p.sessions.DetachAll()
	p.log.Info().Msgf("voice: left %d voice channels", len(left))

	p.sessions.Notifications().Unsubscribe(p.subscriptionID)
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

// OnReady rejoins the voice channels saved before a restart or reload.
func (p *Plugin) OnReady(ctx context.Context) {
	if p.host.Config.Voice.NoRejoin {
		p.log.Info().Msg("voice: rejoin disabled")
		return
	}
	results, err := p.sessions.Rejoin(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("voice: failed to rejoin voice channels")
		return
	}
	for _, r := range results {
		if r.Err != nil {
			p.send(ctx, r.Binding.TextChannelID, p.texts.Format(rejoinKey, 1, r.Binding.VoiceChannelName, r.Err.Error()))
			continue
		}
		p.send(ctx, r.Binding.TextChannelID, p.texts.Format(rejoinKey, 2, r.Binding.VoiceChannelName))
	}
}

func (p *Plugin) send(ctx context.Context, channelID, content string) {
	if channelID == "" {
		return
	}
	if err := p.host.Sender.Send(ctx, channelID, content); err != nil {
		p.log.Warn().Err(err).Msgf("voice: failed to post to %s", channelID)
	}
}
