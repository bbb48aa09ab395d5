package audio

import (
	"context"
	"time"

	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/domain/track"
	"github.com/osa030/decobox/internal/infra/metrics"
)

// Player loads tracks for one voice session.
type Player struct {
	downloader *Downloader
	sink       Sink
	metrics    *metrics.Metrics
}

// NewPlayer creates a player streaming to sink. m may be nil.
func NewPlayer(downloader *Downloader, sink Sink, m *metrics.Metrics) *Player {
	return &Player{downloader: downloader, sink: sink, metrics: m}
}

// Load downloads req and returns a handle ready to start.
func (p *Player) Load(ctx context.Context, req track.Request, onFinish playback.FinishFunc) (track.Handle, error) {
	started := time.Now()
	dl, err := p.downloader.Fetch(ctx, req.Source)
	if p.metrics != nil {
		p.metrics.TrackLoad.Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, err
	}
	return newHandle(dl, p.downloader.Config(), p.sink, onFinish, p.downloader.Discard), nil
}
