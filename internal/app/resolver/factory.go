package resolver

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/infra/config"
)

// NewChainFromConfig creates a resolver chain from configuration.
// Without configured resolvers the chain is spotify (when a client is
// available), link, then search.
func NewChainFromConfig(cfg *config.Config, spotify SpotifyClient) (*Chain, error) {
	rcfgs := cfg.Voice.Resolvers
	if len(rcfgs) == 0 {
		if spotify != nil {
			rcfgs = append(rcfgs, config.ResolverConfig{Type: "spotify"})
		}
		rcfgs = append(rcfgs,
			config.ResolverConfig{Type: "link"},
			config.ResolverConfig{Type: "search"},
		)
	}

	var resolvers []Resolver

	for i, rcfg := range rcfgs {
		var r Resolver
		var err error
		zlog.Debug().Msgf("creating resolver: index=%d type=%s settings=%+v", i+1, rcfg.Type, rcfg.Settings)
		switch rcfg.Type {
		case "spotify":
			r, err = NewSpotifyResolver(spotify, rcfg.Settings)

		case "link":
			r = NewLinkResolver()

		case "search":
			r, err = NewSearchResolver(rcfg.Settings)

		default:
			return nil, errors.Newf("unsupported resolver type: %s (resolver index %d)", rcfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create resolver (index %d, type %s)", i, rcfg.Type)
		}

		resolvers = append(resolvers, r)
		zlog.Info().Msgf("registered resolver: index=%d type=%s", i+1, rcfg.Type)
	}

	return NewChain(resolvers...), nil
}
