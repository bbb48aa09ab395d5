package resolver

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/app/filter"
)

// ErrUnresolved is returned when no resolver handles a source.
var ErrUnresolved = errors.New("no resolver handles source")

// Chain tries resolvers in order until one handles the source.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a new resolver chain.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{
		resolvers: resolvers,
	}
}

// Resolve returns the source rewritten by the first resolver that handles it.
func (c *Chain) Resolve(ctx context.Context, source string) (string, error) {
	source = filter.CleanSource(source)
	if source == "" {
		return "", errors.Wrap(ErrUnresolved, "empty source")
	}

	for i, r := range c.resolvers {
		out, ok, err := r.Resolve(ctx, source)
		if err != nil {
			return "", errors.Wrapf(err, "resolver %s failed", r.Name())
		}
		if !ok {
			continue
		}
		zlog.Debug().Msgf("resolved source: index=%d resolver=%s source=%q target=%q",
			i+1, r.Name(), source, out)
		return out, nil
	}

	return "", errors.Wrapf(ErrUnresolved, "%q", source)
}

// Names returns the resolver names in order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.Name()
	}
	return names
}

// Name returns the chain name.
func (c *Chain) Name() string {
	return "resolver_chain"
}
