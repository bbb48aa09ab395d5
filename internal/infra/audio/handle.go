package audio

import (
	"bytes"
	"context"
	"io"
	"math"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/domain/track"
)

// Sink receives encoded Opus frames.
type Sink interface {
	Speaking(speaking bool) error
	SendOpus(ctx context.Context, frame []byte) error
}

// Handle streams one download to a sink.
type Handle struct {
	id       string
	download *Download
	config   Config
	sink     Sink
	onFinish playback.FinishFunc
	discard  func(*Download)

	ctx    context.Context
	cancel context.CancelFunc

	volume  atomic.Uint64 // float64 bits
	gate    gate
	started atomic.Bool

	stopOnce    sync.Once
	finishOnce  sync.Once
	cleanupOnce sync.Once
}

func newHandle(dl *Download, config Config, sink Sink, onFinish playback.FinishFunc, discard func(*Download)) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		id:       uuid.New().String(),
		download: dl,
		config:   config,
		sink:     sink,
		onFinish: onFinish,
		discard:  discard,
		ctx:      ctx,
		cancel:   cancel,
	}
	h.volume.Store(math.Float64bits(1))
	return h
}

func (h *Handle) ID() string {
	return h.id
}

func (h *Handle) Info() track.Info {
	return h.download.Info
}

// Start launches the decoder and encoder and begins streaming.
func (h *Handle) Start() error {
	if !h.started.CompareAndSwap(false, true) {
		return errors.New("handle already started")
	}

	decode := exec.CommandContext(h.ctx, h.config.FFmpegPath, decodeArgs(h.download.Path)...)
	encode := exec.CommandContext(h.ctx, h.config.FFmpegPath, encodeArgs(h.config.BitrateKbps)...)
	var decodeErr, encodeErr bytes.Buffer
	decode.Stderr = &decodeErr
	encode.Stderr = &encodeErr

	pcm, err := decode.StdoutPipe()
	if err != nil {
		return h.startFailed(err)
	}
	in, err := encode.StdinPipe()
	if err != nil {
		return h.startFailed(err)
	}
	out, err := encode.StdoutPipe()
	if err != nil {
		return h.startFailed(err)
	}

	if err := decode.Start(); err != nil {
		return h.startFailed(errors.Wrap(err, "failed to start decoder"))
	}
	if err := encode.Start(); err != nil {
		h.cancel()
		_ = decode.Wait()
		return h.startFailed(errors.Wrap(err, "failed to start encoder"))
	}

	go h.run(decode, encode, pcm, in, out, &decodeErr, &encodeErr)
	return nil
}

func (h *Handle) startFailed(err error) error {
	h.cleanup()
	return errors.Mark(err, track.ErrUnsupportedSource)
}

func (h *Handle) run(decode, encode *exec.Cmd, pcm io.Reader, in io.WriteCloser, out io.Reader, decodeErr, encodeErr *bytes.Buffer) {
	defer h.cleanup()

	var g errgroup.Group
	g.Go(func() error {
		defer in.Close()
		err := h.pump(pcm, in)
		if err != nil {
			h.cancel()
		}
		return err
	})
	g.Go(func() error {
		err := h.forward(out)
		if err != nil {
			h.cancel()
		}
		return err
	})
	streamErr := g.Wait()

	if err := decode.Wait(); err != nil && streamErr == nil {
		streamErr = errors.Wrapf(err, "decoder: %s", bytes.TrimSpace(decodeErr.Bytes()))
	}
	if err := encode.Wait(); err != nil && streamErr == nil {
		streamErr = errors.Wrapf(err, "encoder: %s", bytes.TrimSpace(encodeErr.Bytes()))
	}
	_ = h.sink.Speaking(false)

	if h.ctx.Err() != nil && !errors.Is(streamErr, errSink) {
		// Stopped on purpose.
		streamErr = nil
	}
	h.finish(streamErr)
	h.cancel()
}

var errSink = errors.New("voice connection rejected audio")

// pump scales decoded PCM by the current volume and feeds the encoder.
func (h *Handle) pump(pcm io.Reader, in io.Writer) error {
	buf := make([]byte, frameBytes)
	for {
		n, err := io.ReadFull(pcm, buf)
		if n > 0 {
			scalePCM(buf[:n&^1], h.Volume())
			if _, werr := in.Write(buf[:n]); werr != nil {
				if h.ctx.Err() != nil {
					return nil
				}
				return errors.Wrap(werr, "failed to feed encoder")
			}
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return nil
		case h.ctx.Err() != nil:
			return nil
		default:
			return errors.Wrap(err, "failed to read decoder output")
		}
	}
}

// forward sends encoded packets to the sink, holding while paused.
func (h *Handle) forward(out io.Reader) error {
	r := newOpusPacketReader(out)
	speaking := false
	for {
		pkt, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if h.ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to read encoder output")
		}

		waited, err := h.gate.wait(h.ctx)
		if err != nil {
			return nil
		}
		if waited || !speaking {
			if err := h.sink.Speaking(true); err != nil {
				zlog.Debug().Err(err).Msg("audio: speaking update failed")
			}
			speaking = true
		}
		if err := h.sink.SendOpus(h.ctx, pkt); err != nil {
			if h.ctx.Err() != nil {
				return nil
			}
			return errors.Mark(err, errSink)
		}
	}
}

func (h *Handle) finish(err error) {
	h.finishOnce.Do(func() {
		if h.onFinish != nil {
			h.onFinish(h, err)
		}
	})
}

func (h *Handle) cleanup() {
	h.cleanupOnce.Do(func() {
		if h.discard != nil {
			h.discard(h.download)
		}
	})
}

// Stop ends playback. A started handle still reports completion.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()
		if !h.started.Load() {
			h.cleanup()
		}
	})
}

func (h *Handle) Pause() {
	h.gate.pause()
	_ = h.sink.Speaking(false)
}

func (h *Handle) Resume() {
	h.gate.resume()
}

func (h *Handle) SetVolume(v float64) {
	h.volume.Store(math.Float64bits(v))
}

// Volume returns the current volume fraction.
func (h *Handle) Volume() float64 {
	return math.Float64frombits(h.volume.Load())
}

// gate blocks the forwarder while paused.
type gate struct {
	mu     sync.Mutex
	paused chan struct{} // non-nil while paused
}

func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused == nil {
		g.paused = make(chan struct{})
	}
}

func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paused != nil {
		close(g.paused)
		g.paused = nil
	}
}

// wait returns once unpaused, reporting whether it had to wait.
func (g *gate) wait(ctx context.Context) (bool, error) {
	g.mu.Lock()
	ch := g.paused
	g.mu.Unlock()
	if ch == nil {
		return false, nil
	}
	select {
	case <-ch:
		return true, nil
	case <-ctx.Done():
		return true, ctx.Err()
	}
}

func decodeArgs(path string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-i", path,
		"-vn",
		"-f", "s16le", "-ar", strconv.Itoa(sampleRate), "-ac", strconv.Itoa(channels),
		"pipe:1",
	}
}

func encodeArgs(bitrateKbps int) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "s16le", "-ar", strconv.Itoa(sampleRate), "-ac", strconv.Itoa(channels),
		"-i", "pipe:0",
		"-c:a", "libopus", "-b:a", strconv.Itoa(bitrateKbps) + "k",
		"-frame_duration", "20", "-application", "audio",
		"-page_duration", "20000",
		"-f", "ogg",
		"pipe:1",
	}
}
