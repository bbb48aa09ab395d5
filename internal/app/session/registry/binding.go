// Package registry tracks the voice bindings of active sessions.
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/decobox/internal/domain/voice"
)

var (
	ErrNotBound     = errors.New("guild has no voice binding")
	ErrAlreadyBound = errors.New("guild already has a voice binding")
)

// BindingRegistry manages guild voice bindings with thread-safe access.
type BindingRegistry struct {
	mu       sync.RWMutex
	bindings map[string]*voice.Binding
}

// NewBindingRegistry creates a new binding registry.
func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{
		bindings: make(map[string]*voice.Binding),
	}
}

// Bind records a binding for its guild.
func (r *BindingRegistry) Bind(b voice.Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bindings[b.GuildID]; ok {
		return errors.Wrapf(ErrAlreadyBound, "guild %s", b.GuildID)
	}
	r.bindings[b.GuildID] = &b
	return nil
}

// Binding returns a copy of a guild's binding.
func (r *BindingRegistry) Binding(guildID string) (*voice.Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[guildID]
	if !ok {
		return nil, false
	}
	c := *b
	return &c, true
}

// Move points a guild's binding at another voice channel.
func (r *BindingRegistry) Move(guildID, voiceChannelID, voiceChannelName string) (voice.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[guildID]
	if !ok {
		return voice.Binding{}, ErrNotBound
	}
	b.Move(voiceChannelID, voiceChannelName)
	return *b, nil
}

// Unbind removes and returns a guild's binding.
func (r *BindingRegistry) Unbind(guildID string) (voice.Binding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[guildID]
	if !ok {
		return voice.Binding{}, ErrNotBound
	}
	delete(r.bindings, guildID)
	return *b, nil
}

// All returns every binding ordered by join time.
func (r *BindingRegistry) All() []voice.Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]voice.Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result
}

// Count returns the number of bindings.
func (r *BindingRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}
