package filter

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/decobox/internal/domain/track"
)

// BannedUserConfig represents the configuration for BannedUserFilter.
type BannedUserConfig struct {
	Users []string `mapstructure:"users"`
}

// BannedUserFilter drops commands from banned users and other bots.
type BannedUserFilter struct {
	users []string
}

// NewBannedUserFilter creates a new banned user filter.
func NewBannedUserFilter(users []string) *BannedUserFilter {
	return &BannedUserFilter{users: slices.Clone(users)}
}

func (f *BannedUserFilter) Name() string {
	return "banned_user_filter"
}

func (f *BannedUserFilter) Description() string {
	return "Ignores commands from banned users and bots"
}

func (f *BannedUserFilter) ReturnCodes() []string {
	return []string{"banned", "bot"}
}

// ValidateConfig appends extra users from settings.
func (f *BannedUserFilter) ValidateConfig(settings map[string]any) error {
	var config BannedUserConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	for _, u := range config.Users {
		if u == "" {
			return errors.New("users must not contain empty ids")
		}
		if !slices.Contains(f.users, u) {
			f.users = append(f.users, u)
		}
	}
	return nil
}

func (f *BannedUserFilter) AppliesTo(requesterType track.RequesterType) bool {
	return requesterType == track.RequesterTypeUser
}

func (f *BannedUserFilter) Check(ctx context.Context, req Request) Result {
	if req.Message.IsBot {
		return Drop("bot")
	}
	if slices.Contains(f.users, req.Message.AuthorID) {
		return Drop("banned")
	}
	return Accept()
}

func init() {
	Register("banned_user_filter", func() Filter {
		return &BannedUserFilter{}
	})
}
