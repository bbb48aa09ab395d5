// Package discord connects the bot to Discord through discordgo.
package discord

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/infra/metrics"
)

// Config holds the connection configuration.
type Config struct {
	Token     string
	SendRate  float64 // Messages per second
	SendBurst int
}

// Client wraps a discordgo session.
type Client struct {
	session *discordgo.Session
	limiter *rate.Limiter
	metrics *metrics.Metrics

	mu     sync.Mutex
	voices map[string]*voiceConn // guild ID -> connection
}

// New creates a client. Call Open to connect. m may be nil.
func New(cfg Config, m *metrics.Metrics) (*Client, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildVoiceStates |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	session.LogLevel = discordgo.LogWarning

	if cfg.SendRate <= 0 {
		cfg.SendRate = 5
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = 1
	}
	return &Client{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		metrics: m,
		voices:  make(map[string]*voiceConn),
	}, nil
}

// Open connects the gateway.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open discord session")
	}
	zlog.Info().Msg("discord: session opened")
	return nil
}

// Close disconnects every voice connection and the gateway.
func (c *Client) Close() error {
	c.mu.Lock()
	voices := make([]*voiceConn, 0, len(c.voices))
	for _, v := range c.voices {
		voices = append(voices, v)
	}
	c.mu.Unlock()
	for _, v := range voices {
		_ = v.Disconnect()
	}
	return c.session.Close()
}

// OnMessage registers fn for every created message.
func (c *Client) OnMessage(ctx context.Context, fn func(ctx context.Context, msg chat.Message)) {
	c.session.AddHandler(func(s *discordgo.Session, event *discordgo.MessageCreate) {
		if event.Author == nil {
			return
		}
		fn(ctx, convertMessage(event.Message, s.State.User))
	})
}

// OnReady registers fn for gateway ready events.
func (c *Client) OnReady(ctx context.Context, fn func(ctx context.Context)) {
	c.session.AddHandler(func(s *discordgo.Session, event *discordgo.Ready) {
		zlog.Info().Msgf("discord: ready: user=%s guilds=%d", event.User.Username, len(event.Guilds))
		fn(ctx)
	})
}

func convertMessage(m *discordgo.Message, self *discordgo.User) chat.Message {
	name := m.Author.GlobalName
	if m.Member != nil && m.Member.Nick != "" {
		name = m.Member.Nick
	}
	if name == "" {
		name = m.Author.Username
	}
	isBot := m.Author.Bot || (self != nil && m.Author.ID == self.ID)
	return chat.Message{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		GuildID:    m.GuildID,
		AuthorID:   m.Author.ID,
		AuthorName: name,
		Content:    m.Content,
		IsBot:      isBot,
		SentAt:     m.Timestamp,
	}
}

// Send posts content to a channel, splitting it at the message length limit.
// A missing permission is reported as chat.ErrForbidden.
func (c *Client) Send(ctx context.Context, channelID, content string) error {
	for _, part := range chat.Chunks(content, chat.MaxMessageLength) {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "send cancelled")
		}
		_, err := c.session.ChannelMessageSend(channelID, part, discordgo.WithContext(ctx))
		if err != nil {
			err = classify(err)
			c.observeSend(err)
			return errors.Wrapf(err, "failed to send to channel %s", channelID)
		}
		c.observeSend(nil)
	}
	return nil
}

func (c *Client) observeSend(err error) {
	if c.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, chat.ErrForbidden):
		result = "forbidden"
	case err != nil:
		result = "error"
	}
	c.metrics.MessagesSent.Observe(1, result)
}

func classify(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusForbidden {
		return errors.Mark(err, chat.ErrForbidden)
	}
	return err
}

// UserVoiceChannel returns the voice channel a member is connected to.
func (c *Client) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := c.session.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// ChannelName returns a channel's name, or its ID when unknown.
func (c *Client) ChannelName(channelID string) string {
	if ch, err := c.session.State.Channel(channelID); err == nil {
		return ch.Name
	}
	if ch, err := c.session.Channel(channelID); err == nil {
		return ch.Name
	}
	return channelID
}

// GuildName returns a guild's name, or its ID when unknown.
func (c *Client) GuildName(guildID string) string {
	if g, err := c.session.State.Guild(guildID); err == nil {
		return g.Name
	}
	return guildID
}

// String identifies the connected user in logs.
func (c *Client) String() string {
	if c.session.State != nil && c.session.State.User != nil {
		return fmt.Sprintf("discord(%s)", c.session.State.User.Username)
	}
	return "discord"
}
