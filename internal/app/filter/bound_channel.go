package filter

import (
	"context"

	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/domain/voice"
)

// BindingLookup returns the current voice binding of a guild.
type BindingLookup interface {
	Binding(guildID string) (*voice.Binding, bool)
}

// BoundChannelFilter accepts voice commands only from the text channel the
// guild's voice session is bound to.
type BoundChannelFilter struct {
	bindings BindingLookup
}

// NewBoundChannelFilter creates a new bound channel filter.
func NewBoundChannelFilter(bindings BindingLookup) *BoundChannelFilter {
	return &BoundChannelFilter{bindings: bindings}
}

func (f *BoundChannelFilter) Name() string {
	return "bound_channel_filter"
}

func (f *BoundChannelFilter) Description() string {
	return "Accepts voice commands only from the bound text channel"
}

func (f *BoundChannelFilter) ReturnCodes() []string {
	return []string{"not_joined", "wrong_channel"}
}

func (f *BoundChannelFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *BoundChannelFilter) AppliesTo(requesterType track.RequesterType) bool {
	// The admin API addresses guilds directly
	return requesterType == track.RequesterTypeUser
}

func (f *BoundChannelFilter) Check(ctx context.Context, req Request) Result {
	if !req.NeedsBinding || f.bindings == nil {
		return Accept()
	}

	b, ok := f.bindings.Binding(req.Message.GuildID)
	if !ok {
		return Reject("not_joined")
	}
	if !b.AcceptsCommandsFrom(req.Message.ChannelID) {
		return Reject("wrong_channel")
	}
	return Accept()
}

func init() {
	// Registered for listing; the live instance needs the session registry.
	Register("bound_channel_filter", func() Filter {
		return &BoundChannelFilter{}
	})
}
