package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/infra/config"
)

type sent struct {
	channelID string
	content   string
}

type fakeSender struct {
	mu   sync.Mutex
	err  error
	sent []sent
}

func (s *fakeSender) Send(_ context.Context, channelID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sent{channelID: channelID, content: content})
	return nil
}

func (s *fakeSender) Sent() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type testPlugin struct {
	name     string
	commands []Command
	loadErr  error

	mu      sync.Mutex
	loads   int
	unloads int
	ready   int
	readyCh chan struct{}
}

func (p *testPlugin) Name() string        { return p.name }
func (p *testPlugin) Commands() []Command { return p.commands }

func (p *testPlugin) Load(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.loads++
	return nil
}

func (p *testPlugin) Unload(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unloads++
	return nil
}

func (p *testPlugin) OnReady(context.Context) {
	p.mu.Lock()
	p.ready++
	p.mu.Unlock()
	if p.readyCh != nil {
		p.readyCh <- struct{}{}
	}
}

func newHost(sender Sender) *Host {
	return &Host{
		Config: &config.Config{Bot: config.BotConfig{Prefix: "::", OwnerID: "owner"}},
		Sender: sender,
	}
}

func message(author, channel, content string) chat.Message {
	return chat.Message{ID: "m", ChannelID: channel, GuildID: "g", AuthorID: author, Content: content}
}

func TestManager_LoadUnload(t *testing.T) {
	ctx := context.Background()
	p := &testPlugin{name: "lifecycle", commands: []Command{{Name: "ping", Handler: func(context.Context, *Invocation) error { return nil }}}}
	Register("lifecycle", "test plugin", func(*Host) Plugin { return p })

	m := NewManager(newHost(&fakeSender{}), nil)

	assert.ErrorIs(t, m.Load(ctx, "missing"), ErrUnknownPlugin)
	assert.ErrorIs(t, m.Unload(ctx, "lifecycle"), ErrNotLoaded)
	assert.ErrorIs(t, m.Unload(ctx, "missing"), ErrUnknownPlugin)

	require.NoError(t, m.Load(ctx, "Lifecycle"))
	assert.ErrorIs(t, m.Load(ctx, "lifecycle"), ErrAlreadyLoaded)
	assert.True(t, m.IsLoaded("lifecycle"))
	assert.Equal(t, []string{"lifecycle"}, m.Loaded())

	require.NoError(t, m.Unload(ctx, "lifecycle"))
	assert.False(t, m.IsLoaded("lifecycle"))

	require.NoError(t, m.Reload(ctx, "lifecycle"))
	assert.True(t, m.IsLoaded("lifecycle"))
	assert.Equal(t, 2, p.loads)
	assert.Equal(t, 1, p.unloads)

	require.NoError(t, m.Reload(ctx, "lifecycle"))
	assert.Equal(t, 3, p.loads)
	assert.Equal(t, 2, p.unloads)
}

func TestManager_LoadFailureKeepsCommandsOut(t *testing.T) {
	ctx := context.Background()
	called := false
	Register("broken", "fails to load", func(*Host) Plugin {
		return &testPlugin{
			name:    "broken",
			loadErr: errors.New("boom"),
			commands: []Command{{Name: "broken", Handler: func(context.Context, *Invocation) error {
				called = true
				return nil
			}}},
		}
	})

	m := NewManager(newHost(&fakeSender{}), nil)
	assert.Error(t, m.Load(ctx, "broken"))
	assert.False(t, m.IsLoaded("broken"))

	m.Dispatch(ctx, message("u", "c", "::broken"))
	assert.False(t, called)
}

func TestManager_CommandConflict(t *testing.T) {
	ctx := context.Background()
	noop := func(context.Context, *Invocation) error { return nil }
	Register("first", "", func(*Host) Plugin {
		return &testPlugin{name: "first", commands: []Command{{Name: "shared", Handler: noop}}}
	})
	Register("second", "", func(*Host) Plugin {
		return &testPlugin{name: "second", commands: []Command{{Name: "other", Aliases: []string{"SHARED"}, Handler: noop}}}
	})

	m := NewManager(newHost(&fakeSender{}), nil)
	require.NoError(t, m.Load(ctx, "first"))
	assert.ErrorIs(t, m.Load(ctx, "second"), ErrCommandConflict)
	assert.False(t, m.IsLoaded("second"))
}

func TestManager_Dispatch(t *testing.T) {
	ctx := context.Background()
	var got []*Invocation
	record := func(_ context.Context, inv *Invocation) error {
		got = append(got, inv)
		return inv.Reply(ctx, "ok "+inv.Args)
	}
	Register("dispatch", "", func(*Host) Plugin {
		return &testPlugin{name: "dispatch", commands: []Command{
			{Name: "Echo", Aliases: []string{"say"}, Handler: record},
			{Name: "secret", OwnerOnly: true, Handler: record, Rejected: func(_ *Invocation, code string) string { return "denied: " + code }},
			{Name: "quiet", OwnerOnly: true, Handler: record},
		}}
	})

	sender := &fakeSender{}
	host := newHost(sender)
	chain := filter.NewChain()
	chain.Add(filter.NewOwnerOnlyFilter("owner"))
	chain.Add(filter.NewBannedUserFilter([]string{"banned"}))
	m := NewManager(host, chain)
	require.NoError(t, m.Load(ctx, "dispatch"))

	tests := []struct {
		name     string
		msg      chat.Message
		invoked  bool
		args     string
		expected []sent
	}{
		{name: "command with args", msg: message("u", "c1", "::echo  hello   world"), invoked: true, args: "hello   world", expected: []sent{{"c1", "ok hello   world"}}},
		{name: "case insensitive alias", msg: message("u", "c1", "::SAY hi"), invoked: true, args: "hi", expected: []sent{{"c1", "ok hi"}}},
		{name: "no prefix", msg: message("u", "c1", "echo hi")},
		{name: "unknown command", msg: message("u", "c1", "::nope")},
		{name: "owner only answered", msg: message("u", "c1", "::secret"), expected: []sent{{"c1", "denied: owner_only"}}},
		{name: "owner only silent", msg: message("u", "c1", "::quiet")},
		{name: "owner allowed", msg: message("owner", "c2", "::secret x"), invoked: true, args: "x", expected: []sent{{"c2", "ok x"}}},
		{name: "banned dropped", msg: message("banned", "c1", "::echo hi")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = nil
			sender.mu.Lock()
			sender.sent = nil
			sender.mu.Unlock()

			m.Dispatch(ctx, tt.msg)

			if tt.invoked {
				require.Len(t, got, 1)
				assert.Equal(t, "dispatch", got[0].Plugin)
				assert.Equal(t, tt.args, got[0].Args)
			} else {
				assert.Empty(t, got)
			}
			assert.Equal(t, tt.expected, sender.Sent())
		})
	}
}

func TestInvocation_ReplyIgnoresForbidden(t *testing.T) {
	sender := &fakeSender{err: errors.Wrap(chat.ErrForbidden, "403")}
	inv := &Invocation{Message: message("u", "c", ""), sender: sender}
	assert.NoError(t, inv.Reply(context.Background(), "hi"))

	sender.err = errors.New("network")
	assert.Error(t, inv.Reply(context.Background(), "hi"))
}

func TestManager_ReadyNotifiesLoadedAndLaterPlugins(t *testing.T) {
	ctx := context.Background()
	early := &testPlugin{name: "early"}
	late := &testPlugin{name: "late", readyCh: make(chan struct{}, 1)}
	Register("early", "", func(*Host) Plugin { return early })
	Register("late", "", func(*Host) Plugin { return late })

	m := NewManager(newHost(&fakeSender{}), nil)
	assert.Equal(t, 1, m.LoadAll(ctx, []string{"early", "unknown"}))

	m.Ready(ctx)
	assert.Equal(t, 1, early.ready)

	require.NoError(t, m.Load(ctx, "late"))
	select {
	case <-late.readyCh:
	case <-time.After(time.Second):
		t.Fatal("late plugin was not told about ready")
	}
}

func TestManager_UnloadAllReverseOrder(t *testing.T) {
	ctx := context.Background()
	var order []string
	var mu sync.Mutex
	for _, name := range []string{"ua", "ub"} {
		name := name
		Register(name, "", func(*Host) Plugin { return &orderPlugin{name: name, order: &order, mu: &mu} })
	}

	m := NewManager(newHost(&fakeSender{}), nil)
	require.NoError(t, m.Load(ctx, "ua"))
	require.NoError(t, m.Load(ctx, "ub"))
	m.UnloadAll(ctx)

	assert.Equal(t, []string{"ub", "ua"}, order)
	assert.Empty(t, m.Loaded())
}

type orderPlugin struct {
	name  string
	order *[]string
	mu    *sync.Mutex
}

func (p *orderPlugin) Name() string               { return p.name }
func (p *orderPlugin) Commands() []Command        { return nil }
func (p *orderPlugin) Load(context.Context) error { return nil }

func (p *orderPlugin) Unload(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, p.name)
	return nil
}

func TestManager_WaitForMessage(t *testing.T) {
	m := NewManager(newHost(&fakeSender{}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result := make(chan chat.Message, 1)
	go func() {
		msg, err := m.WaitForMessage(ctx, func(msg chat.Message) bool {
			return msg.AuthorID == "owner" && msg.ChannelID == "c"
		})
		if err == nil {
			result <- msg
		}
	}()

	require.Eventually(t, func() bool { return m.waiters.len() == 1 }, time.Second, 5*time.Millisecond)

	m.Dispatch(ctx, message("other", "c", "`1`"))
	m.Dispatch(ctx, message("owner", "c", "`2`"))

	select {
	case msg := <-result:
		assert.Equal(t, "`2`", msg.Content)
	case <-ctx.Done():
		t.Fatal("waiter not satisfied")
	}
	assert.Equal(t, 0, m.waiters.len())
}

func TestManager_WaitForMessageCancelled(t *testing.T) {
	m := NewManager(newHost(&fakeSender{}), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.WaitForMessage(ctx, func(chat.Message) bool { return true })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, m.waiters.len())
}

func TestGetRegistered_Sorted(t *testing.T) {
	Register("zz-last", "", func(*Host) Plugin { return &testPlugin{name: "zz-last"} })
	Register("aa-first", "", func(*Host) Plugin { return &testPlugin{name: "aa-first"} })

	regs := GetRegistered()
	require.NotEmpty(t, regs)
	assert.Equal(t, "aa-first", regs[0].Name)
	assert.Equal(t, "zz-last", regs[len(regs)-1].Name)
}
