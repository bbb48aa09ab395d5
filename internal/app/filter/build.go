package filter

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/infra/config"
)

// BuildChain creates the command filter chain from configuration.
// Filters are applied in a fixed order; disabled ones are left out.
func BuildChain(cfg *config.Config, bindings BindingLookup) (*Chain, error) {
	candidates := []Filter{
		NewIgnoredChannelFilter(cfg.Bot.IgnoredChannels),
		NewBannedUserFilter(cfg.Bot.BannedUsers),
		NewOwnerOnlyFilter(cfg.Bot.OwnerID),
		NewBoundChannelFilter(bindings),
		NewSourceFilter(cfg.Voice.AllowedHosts),
	}

	chain := NewChain()
	for _, f := range candidates {
		if !cfg.IsFilterEnabled(f.Name()) {
			zlog.Info().Msgf("filter: disabled: %s", f.Name())
			continue
		}
		if err := f.ValidateConfig(cfg.FilterSettings(f.Name())); err != nil {
			return nil, errors.Wrapf(err, "filter %s", f.Name())
		}
		chain.Add(f)
	}
	return chain, nil
}

// ValidateConfig checks the settings of every configured filter.
func ValidateConfig(cfg *config.Config) error {
	registry := GetRegistered()
	for name, fc := range cfg.Filters {
		factory, ok := registry[name]
		if !ok {
			return errors.Newf("unknown filter %q", name)
		}
		if fc.Enabled != nil && !*fc.Enabled {
			continue
		}
		if err := factory().ValidateConfig(fc.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", name)
		}
	}
	return nil
}
