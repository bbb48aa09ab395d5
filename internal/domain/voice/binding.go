// Package voice provides the guild voice binding domain entity.
package voice

import (
	"context"
	"time"
)

// Binding ties a guild's voice connection to the text channel that controls it.
type Binding struct {
	GuildID          string    // Guild ID
	GuildName        string    // Guild name
	VoiceChannelID   string    // Connected voice channel ID
	VoiceChannelName string    // Connected voice channel name
	TextChannelID    string    // Text channel that accepts voice commands
	JoinedAt         time.Time // Join time
}

// NewBinding creates a binding joined now.
func NewBinding(guildID, guildName, voiceChannelID, voiceChannelName, textChannelID string) *Binding {
	return &Binding{
		GuildID:          guildID,
		GuildName:        guildName,
		VoiceChannelID:   voiceChannelID,
		VoiceChannelName: voiceChannelName,
		TextChannelID:    textChannelID,
		JoinedAt:         time.Now(),
	}
}

// Move points the binding at another voice channel.
func (b *Binding) Move(voiceChannelID, voiceChannelName string) {
	b.VoiceChannelID = voiceChannelID
	b.VoiceChannelName = voiceChannelName
}

// AcceptsCommandsFrom reports whether commands from channelID are bound here.
func (b *Binding) AcceptsCommandsFrom(channelID string) bool {
	return b.TextChannelID == channelID
}

// Conn is a live voice connection.
type Conn interface {
	Speaking(speaking bool) error
	SendOpus(ctx context.Context, frame []byte) error
	Move(ctx context.Context, channelID string) error
	Disconnect() error
}
