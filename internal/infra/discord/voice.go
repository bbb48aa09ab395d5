package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/voice"
)

// sendTimeout bounds how long a frame may wait for the voice connection.
const sendTimeout = 10 * time.Second

var errVoiceStalled = errors.New("voice connection stalled")

type voiceConn struct {
	client  *Client
	guildID string
	vc      *discordgo.VoiceConnection
}

// JoinVoice connects to a voice channel, deafened.
func (c *Client) JoinVoice(ctx context.Context, guildID, channelID string) (voice.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, errors.Wrapf(classify(err), "failed to join voice channel %s", channelID)
	}

	conn := &voiceConn{client: c, guildID: guildID, vc: vc}
	c.mu.Lock()
	c.voices[guildID] = conn
	c.mu.Unlock()
	zlog.Info().Msgf("discord: voice joined: guild=%s channel=%s", guildID, channelID)
	return conn, nil
}

func (v *voiceConn) Speaking(speaking bool) error {
	return v.vc.Speaking(speaking)
}

func (v *voiceConn) SendOpus(ctx context.Context, frame []byte) error {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()
	select {
	case v.vc.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errVoiceStalled
	}
}

func (v *voiceConn) Move(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.vc.ChangeChannel(channelID, false, true); err != nil {
		return errors.Wrapf(classify(err), "failed to move to voice channel %s", channelID)
	}
	return nil
}

func (v *voiceConn) Disconnect() error {
	v.client.mu.Lock()
	if v.client.voices[v.guildID] == v {
		delete(v.client.voices, v.guildID)
	}
	v.client.mu.Unlock()
	if err := v.vc.Disconnect(); err != nil {
		return errors.Wrap(err, "failed to disconnect voice")
	}
	return nil
}
