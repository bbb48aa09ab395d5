package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/app/plugin"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/infra/config"
	"github.com/osa030/decobox/internal/infra/text"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) Send(_ context.Context, _ string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content)
	return nil
}

func (s *fakeSender) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return ""
	}
	return s.sent[len(s.sent)-1]
}

type dummy struct{}

func (dummy) Name() string                 { return "dummy" }
func (dummy) Commands() []plugin.Command   { return nil }
func (dummy) Load(context.Context) error   { return nil }
func (dummy) Unload(context.Context) error { return nil }

func init() {
	plugin.Register("dummy", "test plugin", func(*plugin.Host) plugin.Plugin { return dummy{} })
}

func setup(t *testing.T) (*plugin.Manager, *fakeSender) {
	t.Helper()
	texts, err := text.NewStore("")
	require.NoError(t, err)

	cfg := &config.Config{Bot: config.BotConfig{Prefix: "::", OwnerID: "owner"}}
	sender := &fakeSender{}
	host := &plugin.Host{
		Config:    cfg,
		Sender:    sender,
		Texts:     texts,
		StartedAt: time.Now().Add(-(26*time.Hour + 3*time.Minute + 4*time.Second)),
	}
	chain := filter.NewChain()
	chain.Add(filter.NewOwnerOnlyFilter("owner"))
	m := plugin.NewManager(host, chain)
	require.NoError(t, m.Load(context.Background(), Name))
	return m, sender
}

func msg(author, content string) chat.Message {
	return chat.Message{ChannelID: "c", GuildID: "g", AuthorID: author, Content: content}
}

func TestSplitDuration(t *testing.T) {
	tests := []struct {
		name                    string
		d                       time.Duration
		days, hours, mins, secs int
	}{
		{name: "zero", d: 0},
		{name: "negative", d: -time.Second},
		{name: "seconds", d: 59 * time.Second, secs: 59},
		{name: "minute boundary", d: time.Minute, mins: 1},
		{name: "mixed", d: 26*time.Hour + 3*time.Minute + 4*time.Second, days: 1, hours: 2, mins: 3, secs: 4},
		{name: "fractional seconds truncated", d: 1500 * time.Millisecond, secs: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, h, m, s := splitDuration(tt.d)
			assert.Equal(t, []int{tt.days, tt.hours, tt.mins, tt.secs}, []int{d, h, m, s})
		})
	}
}

func TestUptime(t *testing.T) {
	m, sender := setup(t)
	m.Dispatch(context.Background(), msg("anyone", "::uptime"))
	assert.Contains(t, sender.last(), "I have been up for 1 days, 2 hours, 3 minutes, and")
}

func TestManageCommands(t *testing.T) {
	tests := []struct {
		name     string
		author   string
		content  string
		expected string
		loaded   bool
	}{
		{name: "not owner", author: "user", content: "::loadplugin dummy", expected: "Only the bot owner can use this command."},
		{name: "missing argument", author: "owner", content: "::loadplugin", expected: "You need to name a plugin."},
		{name: "load", author: "owner", content: "::loadplugin dummy", expected: "Done. Loaded dummy.", loaded: true},
		{name: "load twice", author: "owner", content: "::loadplugin dummy", expected: "Loading Plugin failed: ```\"dummy\": plugin already loaded```", loaded: true},
		{name: "reload", author: "owner", content: "::reload dummy", expected: "Done. Reloaded dummy.", loaded: true},
		{name: "reloadplugin", author: "owner", content: "::reloadplugin DUMMY", expected: "Done. Reloaded dummy.", loaded: true},
		{name: "unload", author: "owner", content: "::unloadplugin dummy", expected: "Done. Unloaded dummy."},
		{name: "unload again", author: "owner", content: "::unloadplugin dummy", expected: "Unloading Plugin failed: ```\"dummy\": plugin not loaded```"},
		{name: "reload unknown", author: "owner", content: "::reloadplugin nope", expected: "Reloading Plugin failed: ```\"nope\": unknown plugin```"},
	}

	m, sender := setup(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Dispatch(context.Background(), msg(tt.author, tt.content))
			assert.Equal(t, tt.expected, sender.last())
			assert.Equal(t, tt.loaded, m.IsLoaded("dummy"))
		})
	}
}
