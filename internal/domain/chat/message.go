// Package chat provides the chat message domain entity.
package chat

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

// ErrForbidden is returned when the bot may not post in a channel.
var ErrForbidden = errors.New("missing permission")

// MaxMessageLength is the longest message the chat service accepts.
const MaxMessageLength = 2000

// Message is an incoming chat message.
type Message struct {
	ID         string
	ChannelID  string
	GuildID    string // Empty for direct messages
	AuthorID   string
	AuthorName string
	Content    string
	IsBot      bool
	SentAt     time.Time
}

// IsDirect reports whether the message was sent outside a guild.
func (m Message) IsDirect() bool {
	return m.GuildID == ""
}

// IsCommand reports whether the content starts with prefix and a word.
func (m Message) IsCommand(prefix string) bool {
	return prefix != "" && strings.HasPrefix(m.Content, prefix) && m.Command(prefix) != ""
}

// Command returns the lowercased command word following prefix.
func (m Message) Command(prefix string) string {
	cmd, _ := split(strings.TrimPrefix(m.Content, prefix))
	return strings.ToLower(cmd)
}

// Args returns the message content after the command word, trimmed.
func (m Message) Args(prefix string) string {
	_, args := split(strings.TrimPrefix(m.Content, prefix))
	return args
}

func split(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// Chunks splits content into pieces no longer than limit bytes,
// preferring line breaks.
func Chunks(content string, limit int) []string {
	if limit <= 0 {
		limit = MaxMessageLength
	}
	var out []string
	for len(content) > limit {
		cut := strings.LastIndexByte(content[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
		}
		out = append(out, content[:cut])
		content = strings.TrimPrefix(content[cut:], "\n")
	}
	if content != "" {
		out = append(out, content)
	}
	return out
}
