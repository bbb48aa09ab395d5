// Package audio extracts tracks with yt-dlp and streams them to a voice
// connection as Opus through ffmpeg.
package audio

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/track"
)

// Resolver rewrites a request source into an extractor target.
type Resolver interface {
	Resolve(ctx context.Context, source string) (string, error)
}

// Config holds extraction and encoding configuration.
type Config struct {
	CacheDir    string        // Download directory
	YtdlpPath   string        // yt-dlp executable; empty installs a managed copy
	FFmpegPath  string        // ffmpeg executable
	BitrateKbps int           // Opus bitrate
	MaxDuration time.Duration // Zero allows any length
	KeepFiles   bool          // Keep downloads after playback
}

// Download is an extracted track on disk.
type Download struct {
	Path string
	Info track.Info
}

// Downloader fetches request sources into the cache directory.
type Downloader struct {
	config   Config
	resolver Resolver
}

// NewDownloader creates a downloader.
func NewDownloader(config Config, resolver Resolver) (*Downloader, error) {
	if config.CacheDir == "" {
		config.CacheDir = filepath.Join(os.TempDir(), "decobox")
	}
	if config.FFmpegPath == "" {
		config.FFmpegPath = "ffmpeg"
	}
	if config.BitrateKbps <= 0 {
		config.BitrateKbps = 96
	}
	if err := os.MkdirAll(config.CacheDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create cache directory")
	}
	return &Downloader{config: config, resolver: resolver}, nil
}

// Config returns the effective configuration.
func (d *Downloader) Config() Config {
	return d.config
}

// Prepare makes sure a yt-dlp executable is available.
func (d *Downloader) Prepare(ctx context.Context) error {
	if d.config.YtdlpPath != "" {
		return nil
	}
	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to install yt-dlp")
	}
	zlog.Info().Msgf("yt-dlp ready: path=%s", resolved.Executable)
	return nil
}

// Fetch resolves and downloads source.
// Errors are marked with one of the track start failure kinds.
func (d *Downloader) Fetch(ctx context.Context, source string) (*Download, error) {
	target := source
	if d.resolver != nil {
		var err error
		target, err = d.resolver.Resolve(ctx, source)
		if err != nil {
			if track.IsStartFailure(err) {
				return nil, err
			}
			return nil, errors.Mark(err, track.ErrUnsupportedSource)
		}
	}

	dl := ytdlp.New().
		NoPlaylist().
		Format("bestaudio/best").
		ForceOverwrites().
		RestrictFilenames().
		Output(filepath.Join(d.config.CacheDir, "%(extractor)s-%(id)s.%(ext)s"))
	if d.config.YtdlpPath != "" {
		dl.SetExecutable(d.config.YtdlpPath)
	}

	started := time.Now()
	result, err := dl.Run(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Mark(errors.Wrap(ctx.Err(), "download cancelled"), track.ErrDownloadFailed)
		}
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		return nil, classify(errors.Wrapf(err, "yt-dlp %s", target), stderr)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "failed to read media info for %s", target), track.ErrExtractionFailed)
	}
	if len(infos) == 0 {
		return nil, errors.Mark(errors.Newf("no media info for %s", target), track.ErrExtractionFailed)
	}
	info := infos[0]
	if info.Filename == nil || *info.Filename == "" {
		return nil, errors.Mark(errors.Newf("no file downloaded for %s", target), track.ErrDownloadFailed)
	}

	out := &Download{
		Path: *info.Filename,
		Info: track.Info{
			Title:    deref(info.Title),
			Uploader: deref(info.Uploader),
			URL:      deref(info.WebpageURL),
		},
	}
	if info.Duration != nil {
		out.Info.Duration = time.Duration(*info.Duration * float64(time.Second))
	}

	if d.config.MaxDuration > 0 && out.Info.Duration > d.config.MaxDuration {
		d.Discard(out)
		return nil, errors.Mark(
			errors.Newf("%s is longer than %s", out.Info.Title, d.config.MaxDuration),
			track.ErrUnsupportedSource)
	}

	size := uint64(0)
	if st, err := os.Stat(out.Path); err == nil {
		size = uint64(st.Size())
	}
	zlog.Info().Msgf("track downloaded: title=%q size=%s took=%s",
		out.Info.Title, humanize.Bytes(size), time.Since(started).Round(time.Millisecond))
	return out, nil
}

// Discard removes a download unless files are kept.
func (d *Downloader) Discard(dl *Download) {
	if dl == nil || d.config.KeepFiles {
		return
	}
	if err := os.Remove(dl.Path); err != nil && !os.IsNotExist(err) {
		zlog.Warn().Err(err).Msgf("failed to remove download: %s", dl.Path)
	}
}

// classify marks a yt-dlp failure with the matching start failure kind.
func classify(err error, stderr string) error {
	text := strings.ToLower(err.Error() + "\n" + stderr)
	switch {
	case containsAny(text, "unsupported url", "is not a valid url", "no video formats", "requested format is not available"):
		return errors.Mark(err, track.ErrUnsupportedSource)
	case containsAny(text, "timed out", "connection", "network is unreachable", "name resolution", "temporary failure", "http error 5"):
		return errors.Mark(err, track.ErrNetworkFailed)
	case containsAny(text, "unable to extract", "video unavailable", "private video", "sign in to confirm", "extractor"):
		return errors.Mark(err, track.ErrExtractionFailed)
	default:
		return errors.Mark(err, track.ErrDownloadFailed)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
