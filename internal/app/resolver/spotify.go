package resolver

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/infra/spotify"
)

type SpotifyResolverConfig struct {
	SearchPrefix string `mapstructure:"search_prefix" default:"ytsearch1:" validate:"required"`
	CacheSize    int    `mapstructure:"cache_size" default:"128" validate:"gte=0"`
}

// SpotifyResolver maps Spotify track links to a search for the same song.
// Spotify does not serve audio, so the artist and title are searched elsewhere.
// Lookups are cached by track ID to minimize Spotify API calls.
type SpotifyResolver struct {
	spotify SpotifyClient
	config  *SpotifyResolverConfig

	mu    sync.Mutex
	cache map[string]string // track ID -> query
}

// NewSpotifyResolver creates a new SpotifyResolver.
func NewSpotifyResolver(client SpotifyClient, settings map[string]any) (*SpotifyResolver, error) {
	if client == nil {
		return nil, errors.New("spotify resolver requires spotify credentials")
	}

	var config SpotifyResolverConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify resolver config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		zlog.Error().Msgf("spotify resolver validation failed: %v", err)
		return nil, errors.Wrap(err, "validation failed")
	}
	return &SpotifyResolver{
		spotify: client,
		config:  &config,
		cache:   make(map[string]string),
	}, nil
}

// Resolve handles Spotify track links.
func (r *SpotifyResolver) Resolve(ctx context.Context, source string) (string, bool, error) {
	id, ok := spotify.ExtractTrackID(source)
	if !ok {
		return "", false, nil
	}

	if q, hit := r.cached(id); hit {
		return r.config.SearchPrefix + q, true, nil
	}

	t, err := r.spotify.GetTrack(ctx, source)
	if err != nil {
		// The song could not be identified, so nothing can be searched.
		return "", true, errors.Mark(errors.Wrap(err, "failed to look up spotify track"), track.ErrExtractionFailed)
	}
	q := t.Query()
	r.store(id, q)
	zlog.Info().Msgf("spotify track resolved: id=%s query=%q", id, q)
	return r.config.SearchPrefix + q, true, nil
}

func (r *SpotifyResolver) cached(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.cache[id]
	return q, ok
}

func (r *SpotifyResolver) store(id, q string) {
	if r.config.CacheSize == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.cache) >= r.config.CacheSize {
		clear(r.cache)
	}
	r.cache[id] = q
}

// Name returns the resolver name.
func (r *SpotifyResolver) Name() string {
	return "spotify"
}
