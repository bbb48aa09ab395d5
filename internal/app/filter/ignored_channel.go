package filter

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/decobox/internal/domain/track"
)

// IgnoredChannelConfig represents the configuration for IgnoredChannelFilter.
type IgnoredChannelConfig struct {
	Channels []string `mapstructure:"channels"`
}

// IgnoredChannelFilter drops commands sent in ignored channels.
type IgnoredChannelFilter struct {
	channels []string
}

// NewIgnoredChannelFilter creates a new ignored channel filter.
func NewIgnoredChannelFilter(channels []string) *IgnoredChannelFilter {
	return &IgnoredChannelFilter{channels: slices.Clone(channels)}
}

func (f *IgnoredChannelFilter) Name() string {
	return "ignored_channel_filter"
}

func (f *IgnoredChannelFilter) Description() string {
	return "Ignores commands sent in configured channels"
}

func (f *IgnoredChannelFilter) ReturnCodes() []string {
	return []string{"ignored_channel"}
}

// ValidateConfig appends extra channels from settings.
func (f *IgnoredChannelFilter) ValidateConfig(settings map[string]any) error {
	var config IgnoredChannelConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	for _, ch := range config.Channels {
		if ch == "" {
			return errors.New("channels must not contain empty ids")
		}
		if !slices.Contains(f.channels, ch) {
			f.channels = append(f.channels, ch)
		}
	}
	return nil
}

func (f *IgnoredChannelFilter) AppliesTo(requesterType track.RequesterType) bool {
	// Admin API calls carry no channel
	return requesterType == track.RequesterTypeUser
}

func (f *IgnoredChannelFilter) Check(ctx context.Context, req Request) Result {
	if slices.Contains(f.channels, req.Message.ChannelID) {
		return Drop("ignored_channel")
	}
	return Accept()
}

func init() {
	Register("ignored_channel_filter", func() Filter {
		return &IgnoredChannelFilter{}
	})
}
