package resolver

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/infra/config"
	"github.com/osa030/decobox/internal/infra/spotify"
)

type fakeSpotify struct {
	tracks map[string]*spotify.Track
	calls  int
}

func (f *fakeSpotify) GetTrack(ctx context.Context, link string) (*spotify.Track, error) {
	f.calls++
	id, ok := spotify.ExtractTrackID(link)
	if !ok {
		return nil, spotify.ErrNotTrackLink
	}
	t, ok := f.tracks[id]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return t, nil
}

func newFakeSpotify() *fakeSpotify {
	return &fakeSpotify{tracks: map[string]*spotify.Track{
		"abc": {ID: "abc", Name: "Song", Artists: []string{"Band"}},
	}}
}

func TestChain_Resolve(t *testing.T) {
	sp := newFakeSpotify()
	spr, err := NewSpotifyResolver(sp, nil)
	require.NoError(t, err)
	search, err := NewSearchResolver(nil)
	require.NoError(t, err)
	chain := NewChain(spr, NewLinkResolver(), search)

	tests := []struct {
		name    string
		source  string
		want    string
		wantErr error
	}{
		{name: "spotify link", source: "https://open.spotify.com/track/abc?si=1", want: "ytsearch1:Band - Song"},
		{name: "spotify uri", source: "spotify:track:abc", want: "ytsearch1:Band - Song"},
		{name: "bracketed link", source: "<https://youtu.be/xyz>", want: "https://youtu.be/xyz"},
		{name: "search text", source: "  never   gonna ", want: "ytsearch1:never gonna"},
		{name: "dash text", source: "--exec rm", want: "ytsearch1:--exec rm"},
		{name: "unknown spotify track", source: "spotify:track:nope", wantErr: track.ErrExtractionFailed},
		{name: "empty", source: " <> ", wantErr: ErrUnresolved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chain.Resolve(context.Background(), tt.source)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpotifyResolver_Caches(t *testing.T) {
	sp := newFakeSpotify()
	r, err := NewSpotifyResolver(sp, map[string]any{"search_prefix": "scsearch1:"})
	require.NoError(t, err)

	for n := 0; n < 3; n++ {
		got, ok, err := r.Resolve(context.Background(), "spotify:track:abc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "scsearch1:Band - Song", got)
	}
	assert.Equal(t, 1, sp.calls)
}

func TestSpotifyResolver_RequiresClient(t *testing.T) {
	_, err := NewSpotifyResolver(nil, nil)
	assert.Error(t, err)
}

func TestChain_NothingHandles(t *testing.T) {
	chain := NewChain(NewLinkResolver())
	_, err := chain.Resolve(context.Background(), "plain words")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestNewSearchResolver_Validation(t *testing.T) {
	_, err := NewSearchResolver(map[string]any{"prefix": "scsearch1"})
	assert.Error(t, err)

	r, err := NewSearchResolver(map[string]any{"prefix": "scsearch1:"})
	require.NoError(t, err)
	got, ok, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "scsearch1:x", got)
}

func TestNewChainFromConfig(t *testing.T) {
	t.Run("defaults without spotify", func(t *testing.T) {
		chain, err := NewChainFromConfig(&config.Config{}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"link", "search"}, chain.Names())
	})

	t.Run("defaults with spotify", func(t *testing.T) {
		chain, err := NewChainFromConfig(&config.Config{}, newFakeSpotify())
		require.NoError(t, err)
		assert.Equal(t, []string{"spotify", "link", "search"}, chain.Names())
	})

	t.Run("explicit order", func(t *testing.T) {
		cfg := &config.Config{Voice: config.VoiceConfig{Resolvers: []config.ResolverConfig{
			{Type: "search", Settings: map[string]any{"prefix": "scsearch1:"}},
		}}}
		chain, err := NewChainFromConfig(cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"search"}, chain.Names())
	})

	t.Run("unknown type", func(t *testing.T) {
		cfg := &config.Config{Voice: config.VoiceConfig{Resolvers: []config.ResolverConfig{{Type: "bandcamp"}}}}
		_, err := NewChainFromConfig(cfg, nil)
		assert.Error(t, err)
	})

	t.Run("spotify without client", func(t *testing.T) {
		cfg := &config.Config{Voice: config.VoiceConfig{Resolvers: []config.ResolverConfig{{Type: "spotify"}}}}
		_, err := NewChainFromConfig(cfg, nil)
		assert.Error(t, err)
	})
}
