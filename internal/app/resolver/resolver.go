// Package resolver turns play command sources into something the extractor
// can download.
package resolver

import (
	"context"

	"github.com/osa030/decobox/internal/infra/spotify"
)

// Resolver rewrites a source it recognizes.
// Different implementations handle different source kinds
// (e.g., Spotify track links, direct links, free search text).
type Resolver interface {
	// Resolve returns the rewritten source and true when the resolver
	// handles source, or false to let the next resolver try.
	Resolve(ctx context.Context, source string) (string, bool, error)

	// Name returns the resolver name (used in config).
	Name() string
}

// SpotifyClient defines the interface for Spotify operations needed by resolvers.
type SpotifyClient interface {
	GetTrack(ctx context.Context, link string) (*spotify.Track, error)
}
