package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_Args(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{name: "no args", content: "::stop", expected: ""},
		{name: "single arg", content: "::reload voice", expected: "voice"},
		{name: "keeps inner spacing", content: "::play  lofi  hip hop ", expected: "lofi  hip hop"},
		{name: "newline separated", content: "::play song", expected: "song"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Content: tt.content}
			assert.Equal(t, tt.expected, m.Args("::"))
		})
	}
}

func TestMessage_IsDirect(t *testing.T) {
	assert.True(t, Message{}.IsDirect())
	assert.False(t, Message{GuildID: "g"}.IsDirect())
}

func TestMessage_Command(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		command   string
		isCommand bool
	}{
		{name: "plain", content: "::play x", command: "play", isCommand: true},
		{name: "upper case", content: "::PLAY x", command: "play", isCommand: true},
		{name: "newline", content: "::repl\n1+1", command: "repl", isCommand: true},
		{name: "prefix only", content: "::", command: "", isCommand: false},
		{name: "no prefix", content: "play x", command: "play", isCommand: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Content: tt.content}
			assert.Equal(t, tt.command, m.Command("::"))
			assert.Equal(t, tt.isCommand, m.IsCommand("::"))
		})
	}
}

func TestChunks(t *testing.T) {
	assert.Nil(t, Chunks("", 10))
	assert.Equal(t, []string{"short"}, Chunks("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, Chunks("aaaa\nbbbb", 6))
	assert.Equal(t, []string{"abcde", "fgh"}, Chunks("abcdefgh", 5))
	// Multi-byte runes are not split.
	assert.Equal(t, []string{"é", "é"}, Chunks("éé", 3))
}
