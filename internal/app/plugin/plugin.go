// Package plugin hosts the bot's plugins and dispatches chat commands to them.
package plugin

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/decobox/internal/app/session"
	"github.com/osa030/decobox/internal/domain/chat"
	"github.com/osa030/decobox/internal/infra/config"
	"github.com/osa030/decobox/internal/infra/metrics"
	"github.com/osa030/decobox/internal/infra/text"
)

var (
	ErrUnknownPlugin   = errors.New("unknown plugin")
	ErrAlreadyLoaded   = errors.New("plugin already loaded")
	ErrNotLoaded       = errors.New("plugin not loaded")
	ErrCommandConflict = errors.New("command already registered")
)

// Plugin is a set of commands that can be loaded and unloaded at runtime.
type Plugin interface {
	Name() string
	Commands() []Command
	// Load is called before the plugin's commands are dispatched.
	Load(ctx context.Context) error
	// Unload is called after the plugin's commands are removed.
	Unload(ctx context.Context) error
}

// ReadyHandler is implemented by plugins that act once the chat
// connection is ready.
type ReadyHandler interface {
	OnReady(ctx context.Context)
}

// Handler runs a command.
type Handler func(ctx context.Context, inv *Invocation) error

// Command is a chat command provided by a plugin.
type Command struct {
	Name         string
	Aliases      []string
	OwnerOnly    bool // Only the configured owner may run it
	NeedsBinding bool // Only accepted from a guild's bound text channel
	TakesSource  bool // Arguments are a playable source
	Handler      Handler
	// Rejected returns the reply to a filter rejection code.
	// An empty reply, or a nil func, rejects silently.
	Rejected func(inv *Invocation, code string) string
}

// Sender posts chat messages.
type Sender interface {
	Send(ctx context.Context, channelID, content string) error
}

// Host is what plugins are given to work with.
type Host struct {
	Config    *config.Config
	Sender    Sender
	Texts     *text.Store
	Sessions  *session.Manager // Nil when voice is unavailable
	Plugins   *Manager
	Metrics   *metrics.Metrics // May be nil
	StartedAt time.Time
}

// Factory creates a plugin bound to host.
type Factory func(host *Host) Plugin

// Registration describes an available plugin.
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register makes a plugin available for loading.
func Register(name, description string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = Registration{Name: name, Description: description, Factory: factory}
}

// GetRegistered returns every available plugin ordered by name.
func GetRegistered() []Registration {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Registration, 0, len(registry))
	for _, r := range registry {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookup(name string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	r, ok := registry[name]
	return r, ok
}

// Invocation is one dispatched command.
type Invocation struct {
	Message chat.Message
	Plugin  string
	Command string
	Args    string

	sender Sender
}

// Reply posts content to the channel the command came from.
// Missing permissions are not an error.
func (inv *Invocation) Reply(ctx context.Context, content string) error {
	err := inv.sender.Send(ctx, inv.Message.ChannelID, content)
	if errors.Is(err, chat.ErrForbidden) {
		return nil
	}
	return err
}
