// Package spotify looks up Spotify track links so they can be played from
// another media host.
package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

// ErrNotTrackLink is returned for inputs that do not name a Spotify track.
var ErrNotTrackLink = errors.New("not a spotify track link")

// Client is a Spotify API client using the client credentials flow.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// Track is the subset of Spotify track metadata needed to find it elsewhere.
type Track struct {
	ID       string
	Name     string
	Artists  []string
	Duration time.Duration
}

// Query returns an "Artist - Title" search string.
func (t Track) Query() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return strings.Join(t.Artists, ", ") + " - " + t.Name
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	// The token source refreshes itself; fetch once to fail fast on bad credentials.
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	return newClient(spotify.New(creds.Client(context.Background())), cfg.Market), nil
}

func newClient(client *spotify.Client, market string) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		client:     client,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// newWithBaseURL creates a client against another API root without auth.
func newWithBaseURL(httpClient *http.Client, baseURL, market string) *Client {
	return newClient(spotify.New(httpClient, spotify.WithBaseURL(baseURL)), market)
}

// GetTrack retrieves track information by URL, URI or ID.
func (c *Client) GetTrack(ctx context.Context, link string) (*Track, error) {
	id, ok := ExtractTrackID(link)
	if !ok {
		return nil, errors.Wrapf(ErrNotTrackLink, "%q", link)
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get track")
	}

	return convertTrack(result), nil
}

func convertTrack(t *spotify.FullTrack) *Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}
	return &Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  artists,
		Duration: time.Duration(t.Duration) * time.Millisecond,
	}
}

// retry retries an operation with linear backoff.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var spErr spotify.Error
	if errors.As(err, &spErr) {
		return spErr.Status == http.StatusTooManyRequests || spErr.Status >= 500
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// ExtractTrackID extracts the track ID from a Spotify track URL or URI.
func ExtractTrackID(input string) (string, bool) {
	input = strings.Trim(strings.TrimSpace(input), "<>")
	if strings.HasPrefix(input, "spotify:track:") {
		id := strings.TrimPrefix(input, "spotify:track:")
		return id, id != ""
	}

	// https://open.spotify.com/track/ID or https://open.spotify.com/intl-XX/track/ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		id := strings.Split(parts[len(parts)-1], "?")[0]
		id = strings.TrimRight(id, "/")
		return id, id != ""
	}

	return "", false
}

// IsTrackLink reports whether input names a Spotify track.
func IsTrackLink(input string) bool {
	_, ok := ExtractTrackID(input)
	return ok
}
