package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/track"
)

// Chain runs filters in the order they were added.
type Chain struct {
	filters []Filter
}

// NewChain creates an empty chain. An empty chain accepts everything.
func NewChain() *Chain {
	return &Chain{}
}

// Add appends f to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute checks req against every filter that applies to its requester
// type and stops at the first rejection. Requests without a requester
// type are treated as user requests.
func (c *Chain) Execute(ctx context.Context, req Request) Result {
	if req.RequesterType == "" {
		req.RequesterType = track.RequesterTypeUser
	}
	for _, f := range c.filters {
		if !f.AppliesTo(req.RequesterType) {
			continue
		}
		if result := f.Check(ctx, req); !result.Accepted {
			result.Filter = f.Name()
			zlog.Debug().Msgf("filter: rejected: filter=%s code=%s command=%s/%s user=%s",
				result.Filter, result.Code, req.Plugin, req.Command, req.Message.AuthorID)
			return result
		}
	}
	return Accept()
}

// Filters returns the filters in chain order.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Names returns the filter names in chain order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.filters))
	for i, f := range c.filters {
		names[i] = f.Name()
	}
	return names
}
