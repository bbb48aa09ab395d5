package resolver

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/decobox/internal/app/filter"
)

// LinkResolver passes http(s) links through unchanged.
// Hosts were already checked by the source filter.
type LinkResolver struct{}

// NewLinkResolver creates a new LinkResolver.
func NewLinkResolver() *LinkResolver {
	return &LinkResolver{}
}

// Resolve handles http(s) links.
func (r *LinkResolver) Resolve(ctx context.Context, source string) (string, bool, error) {
	if !filter.IsLink(source) {
		return "", false, nil
	}
	return source, true, nil
}

// Name returns the resolver name.
func (r *LinkResolver) Name() string {
	return "link"
}

type SearchResolverConfig struct {
	Prefix string `mapstructure:"prefix" default:"ytsearch1:" validate:"required,endswith=:"`
}

// SearchResolver turns free text into an extractor search.
type SearchResolver struct {
	config *SearchResolverConfig
}

// NewSearchResolver creates a new SearchResolver.
func NewSearchResolver(settings map[string]any) (*SearchResolver, error) {
	var config SearchResolverConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SearchResolver{config: &config}, nil
}

// Resolve handles any text. The prefix keeps text starting with "-" from
// being read as an extractor option.
func (r *SearchResolver) Resolve(ctx context.Context, source string) (string, bool, error) {
	q := strings.Join(strings.Fields(source), " ")
	if q == "" {
		return "", false, nil
	}
	return r.config.Prefix + q, true, nil
}

// Name returns the resolver name.
func (r *SearchResolver) Name() string {
	return "search"
}
