package plugin

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/osa030/decobox/internal/app/filter"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/infra/logger"
)

type entry struct {
	plugin  string
	command Command
}

// Manager loads plugins and routes chat commands to them.
type Manager struct {
	mu sync.RWMutex

	host     *Host
	chain    *filter.Chain
	loaded   map[string]Plugin
	order    []string
	commands map[string]entry
	ready    bool

	waiters waiters
	log     zerolog.Logger
}

// NewManager creates a plugin manager and attaches it to host.
// chain may be nil to dispatch unfiltered.
func NewManager(host *Host, chain *filter.Chain) *Manager {
	if chain == nil {
		chain = filter.NewChain()
	}
	m := &Manager{
		host:     host,
		chain:    chain,
		loaded:   make(map[string]Plugin),
		commands: make(map[string]entry),
		log:      logger.For("plugins"),
	}
	host.Plugins = m
	return m
}

// LoadAll loads the named plugins, logging the ones that fail.
// It returns the number loaded.
func (m *Manager) LoadAll(ctx context.Context, names []string) int {
	n := 0
	for _, name := range names {
		if err := m.Load(ctx, name); err != nil {
			m.log.Error().Err(err).Msgf("plugins: failed to load %s", name)
			continue
		}
		n++
	}
	return n
}

// Load creates and loads a registered plugin.
func (m *Manager) Load(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	reg, ok := lookup(name)
	if !ok {
		return errors.Wrapf(ErrUnknownPlugin, "%q", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.loaded[name]; ok {
		return errors.Wrapf(ErrAlreadyLoaded, "%q", name)
	}

	p := reg.Factory(m.host)
	added := make(map[string]entry)
	for _, cmd := range p.Commands() {
		for _, key := range commandKeys(cmd) {
			if owner, ok := m.commands[key]; ok {
				return errors.Wrapf(ErrCommandConflict, "%q is provided by %s", key, owner.plugin)
			}
			if _, ok := added[key]; ok {
				return errors.Wrapf(ErrCommandConflict, "%q is declared twice by %s", key, name)
			}
			added[key] = entry{plugin: name, command: cmd}
		}
	}

	if err := p.Load(ctx); err != nil {
		return errors.Wrapf(err, "failed to load %s", name)
	}
	for key, e := range added {
		m.commands[key] = e
	}
	m.loaded[name] = p
	m.order = append(m.order, name)
	m.log.Info().Msgf("plugins: loaded: name=%s commands=%d", name, len(added))

	if rh, ok := p.(ReadyHandler); ok && m.ready {
		go rh.OnReady(context.WithoutCancel(ctx))
	}
	return nil
}

// Unload removes a plugin's commands and unloads it.
func (m *Manager) Unload(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	m.mu.Lock()
	p, ok := m.loaded[name]
	if !ok {
		m.mu.Unlock()
		if _, known := lookup(name); !known {
			return errors.Wrapf(ErrUnknownPlugin, "%q", name)
		}
		return errors.Wrapf(ErrNotLoaded, "%q", name)
	}
	for key, e := range m.commands {
		if e.plugin == name {
			delete(m.commands, key)
		}
	}
	delete(m.loaded, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if err := p.Unload(ctx); err != nil {
		return errors.Wrapf(err, "failed to unload %s", name)
	}
	m.log.Info().Msgf("plugins: unloaded: name=%s", name)
	return nil
}

// Reload unloads a plugin if loaded, re-reads its templates and loads it.
func (m *Manager) Reload(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if err := m.Unload(ctx, name); err != nil && !errors.Is(err, ErrNotLoaded) {
		return err
	}
	if m.host.Texts != nil {
		if err := m.host.Texts.Reload(name); err != nil {
			return err
		}
	}
	return m.Load(ctx, name)
}

// UnloadAll unloads every plugin in reverse load order.
func (m *Manager) UnloadAll(ctx context.Context) {
	for _, name := range m.reverseOrder() {
		if err := m.Unload(ctx, name); err != nil {
			m.log.Warn().Err(err).Msgf("plugins: failed to unload %s", name)
		}
	}
}

func (m *Manager) reverseOrder() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, m.order[i])
	}
	return out
}

// Loaded returns the loaded plugin names in load order.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// IsLoaded reports whether a plugin is loaded.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.loaded[strings.ToLower(name)]
	return ok
}

// Ready tells loaded plugins that the chat connection is ready.
// Plugins loaded later are told on load.
func (m *Manager) Ready(ctx context.Context) {
	m.mu.Lock()
	m.ready = true
	var handlers []ReadyHandler
	for _, name := range m.order {
		if rh, ok := m.loaded[name].(ReadyHandler); ok {
			handlers = append(handlers, rh)
		}
	}
	m.mu.Unlock()

	for _, rh := range handlers {
		rh.OnReady(ctx)
	}
}

// WaitForMessage blocks until a message satisfying match arrives.
func (m *Manager) WaitForMessage(ctx context.Context, match func(chat.Message) bool) (chat.Message, error) {
	return m.waiters.wait(ctx, match)
}

// Dispatch hands msg to waiting goroutines and runs the command it names.
func (m *Manager) Dispatch(ctx context.Context, msg chat.Message) {
	m.waiters.deliver(msg)

	prefix := m.host.Config.Bot.Prefix
	if !msg.IsCommand(prefix) {
		return
	}
	name := msg.Command(prefix)

	m.mu.RLock()
	e, ok := m.commands[name]
	m.mu.RUnlock()
	if !ok {
		return
	}

	inv := &Invocation{
		Message: msg,
		Plugin:  e.plugin,
		Command: e.command.Name,
		Args:    msg.Args(prefix),
		sender:  m.host.Sender,
	}
	result := m.chain.Execute(ctx, filter.Request{
		Message:       msg,
		Plugin:        e.plugin,
		Command:       e.command.Name,
		Args:          inv.Args,
		OwnerOnly:     e.command.OwnerOnly,
		NeedsBinding:  e.command.NeedsBinding,
		TakesSource:   e.command.TakesSource,
		RequesterType: track.RequesterTypeUser,
	})
	if !result.Accepted {
		m.log.Debug().Msgf("plugins: rejected: command=%s author=%s code=%s", inv.Command, msg.AuthorID, result.Code)
		if result.Silent || e.command.Rejected == nil {
			return
		}
		if reply := e.command.Rejected(inv, result.Code); reply != "" {
			if err := inv.Reply(ctx, reply); err != nil {
				m.log.Warn().Err(err).Msgf("plugins: failed to reply to %s", inv.Command)
			}
		}
		return
	}

	if m.host.Metrics != nil {
		m.host.Metrics.Commands.Observe(1, e.plugin, e.command.Name)
	}
	m.log.Debug().Msgf("plugins: dispatch: command=%s author=%s channel=%s", inv.Command, msg.AuthorID, msg.ChannelID)
	if err := e.command.Handler(ctx, inv); err != nil {
		m.log.Warn().Err(err).Msgf("plugins: command %s failed", inv.Command)
	}
}

func commandKeys(cmd Command) []string {
	keys := []string{strings.ToLower(cmd.Name)}
	for _, a := range cmd.Aliases {
		keys = append(keys, strings.ToLower(a))
	}
	return keys
}
