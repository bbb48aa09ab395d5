package filter

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/track"
)

// SourceConfig represents the configuration for SourceFilter.
type SourceConfig struct {
	AllowedHosts []string `mapstructure:"allowed_hosts" validate:"dive,hostname"`
	MaxLength    int      `mapstructure:"max_length" default:"200" validate:"gte=1,lte=2000"`
}

// SourceFilter checks the source argument of play commands.
// Links must point at an allowed host; anything else is search text.
type SourceFilter struct {
	config *SourceConfig
}

// NewSourceFilter creates a new source filter allowing the given hosts.
func NewSourceFilter(allowedHosts []string) *SourceFilter {
	return &SourceFilter{config: &SourceConfig{
		AllowedHosts: normalizeHosts(allowedHosts),
		MaxLength:    200,
	}}
}

func (f *SourceFilter) Name() string {
	return "source_filter"
}

func (f *SourceFilter) Description() string {
	return "Checks that play requests name a supported link or search text"
}

func (f *SourceFilter) ReturnCodes() []string {
	return []string{"empty_source", "unsupported_source", "source_too_long"}
}

func (f *SourceFilter) ValidateConfig(settings map[string]any) error {
	var config SourceConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	// Hosts from the voice section stay allowed when settings name none.
	if len(config.AllowedHosts) == 0 && f.config != nil {
		config.AllowedHosts = f.config.AllowedHosts
	}
	config.AllowedHosts = normalizeHosts(config.AllowedHosts)
	f.config = &config
	zlog.Info().Msgf("source filter config: %+v", config)
	return nil
}

func (f *SourceFilter) AppliesTo(requesterType track.RequesterType) bool {
	// System requests come from persisted state and were checked when made
	return requesterType != track.RequesterTypeSystem
}

func (f *SourceFilter) Check(ctx context.Context, req Request) Result {
	if !req.TakesSource {
		return Accept()
	}

	source := CleanSource(req.Args)
	if source == "" {
		return Reject("empty_source")
	}
	if f.config == nil {
		return Accept()
	}
	if utf8.RuneCountInString(source) > f.config.MaxLength {
		return Reject("source_too_long")
	}

	if !IsLink(source) {
		return Accept()
	}
	u, err := url.Parse(source)
	if err != nil || u.Hostname() == "" {
		return Reject("unsupported_source")
	}
	if !hostAllowed(strings.ToLower(u.Hostname()), f.config.AllowedHosts) {
		return Reject("unsupported_source")
	}
	return Accept()
}

// CleanSource trims whitespace and the angle brackets that suppress link embeds.
func CleanSource(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// IsLink reports whether s looks like an http(s) link.
func IsLink(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// hostAllowed matches host exactly or as a subdomain of an allowed host.
func hostAllowed(host string, allowed []string) bool {
	if slices.Contains(allowed, host) {
		return true
	}
	for _, a := range allowed {
		if strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" && !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}

func init() {
	Register("source_filter", func() Filter {
		return &SourceFilter{}
	})
}
