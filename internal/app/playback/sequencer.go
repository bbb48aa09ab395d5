package playback

import (
	"context"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/decobox/internal/domain/playlist"
	"github.com/osa030/decobox/internal/domain/track"
)

// Errors
var (
	ErrEmptyRequest = errors.New("empty track request")
	ErrDuplicate    = playlist.ErrDuplicate
	ErrCapacity     = playlist.ErrCapacity
	ErrNotPlaying   = errors.New("not playing")
	ErrOutOfRange   = errors.New("volume out of range")
	ErrClosed       = errors.New("sequencer closed")
)

const (
	MinVolume = 0.0
	MaxVolume = 2.0

	defaultEventBuffer = 32
	finishedBuffer     = 8
)

var validate = validator.New()

// FinishFunc is invoked by a Player exactly once per handle when playback ends.
// err is nil on a clean end.
type FinishFunc func(h track.Handle, err error)

// Player loads tracks for the sequencer.
// ctx bounds loading only; the returned handle outlives it.
type Player interface {
	Load(ctx context.Context, req track.Request, onFinish FinishFunc) (track.Handle, error)
}

// Config holds sequencer configuration.
type Config struct {
	Name          string  // Used in logs
	Capacity      int     // Pending queue capacity
	DefaultVolume float64 // Volume applied to the first track (zero selects 1.0)
	EventBuffer   int     // Event channel size
}

// Placement describes where an accepted request ended up.
type Placement struct {
	Started  bool // Became the now-playing track
	Position int  // 1-based queue position when not started
}

type slot struct {
	request   track.Request
	handle    track.Handle
	announced bool
}

type finishNotice struct {
	handle track.Handle
	err    error
}

// Sequencer plays queued requests one at a time.
// All state is owned by the Run goroutine; public methods hand closures to it.
type Sequencer struct {
	player Player
	config Config
	log    zerolog.Logger

	// Loop-owned state
	queue   *playlist.Queue
	current *slot
	state   State
	paused  bool
	volume  float64

	ops      chan func(ctx context.Context)
	finished chan finishNotice
	eventCh  chan Event
	quit     chan struct{}
	done     chan struct{}

	started   atomic.Bool
	closeOnce sync.Once
}

// NewSequencer creates a sequencer. Call Run to start processing.
func NewSequencer(player Player, config Config) *Sequencer {
	if config.EventBuffer <= 0 {
		config.EventBuffer = defaultEventBuffer
	}
	if config.DefaultVolume <= MinVolume || config.DefaultVolume > MaxVolume || math.IsNaN(config.DefaultVolume) {
		config.DefaultVolume = 1.0
	}
	queue := playlist.New(config.Capacity)
	config.Capacity = queue.Cap()

	return &Sequencer{
		player:   player,
		config:   config,
		log:      zlog.With().Str("component", "sequencer").Str("name", config.Name).Logger(),
		queue:    queue,
		state:    StateIdle,
		volume:   config.DefaultVolume,
		ops:      make(chan func(ctx context.Context)),
		finished: make(chan finishNotice, finishedBuffer),
		eventCh:  make(chan Event, config.EventBuffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Events returns the event channel. It is closed when the sequencer stops.
func (s *Sequencer) Events() <-chan Event {
	return s.eventCh
}

// Run processes operations and completions until ctx is cancelled or Close is called.
func (s *Sequencer) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrClosed
	}

	// Close cancels the loop context so an in-flight Load returns.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()
	defer s.shutdown()

	s.log.Debug().Msg("sequencer: loop started")
	for {
		// Completions queued before an operation are applied first.
		select {
		case n := <-s.finished:
			s.handleFinished(ctx, n)
			continue
		default:
		}

		select {
		case <-s.quit:
			return nil
		case <-ctx.Done():
			if s.closing() {
				return nil
			}
			return ctx.Err()
		case op := <-s.ops:
			op(ctx)
		case n := <-s.finished:
			s.handleFinished(ctx, n)
		}
	}
}

// Close stops the active track and ends the loop.
func (s *Sequencer) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.started.CompareAndSwap(false, true) {
			close(s.done)
			close(s.eventCh)
		}
	})
	<-s.done
}

func (s *Sequencer) closing() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// Done is closed once the loop has exited.
func (s *Sequencer) Done() <-chan struct{} {
	return s.done
}

// Enqueue accepts a request. When idle it is started immediately and a start
// failure is returned; otherwise it is appended to the queue.
// Cancelling ctx also cancels the load of an immediately started track.
func (s *Sequencer) Enqueue(ctx context.Context, req track.Request) (Placement, error) {
	var (
		placement Placement
		opErr     error
	)
	err := s.do(ctx, func(loopCtx context.Context) {
		runCtx, cancel := context.WithCancel(loopCtx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		if strings.TrimSpace(req.Source) == "" {
			opErr = ErrEmptyRequest
			return
		}
		if s.queue.Contains(req.Source) {
			opErr = errors.Wrapf(ErrDuplicate, "source %q", req.Source)
			return
		}
		if s.current == nil {
			if err := s.startLocked(runCtx, req, false); err != nil {
				opErr = err
				return
			}
			placement = Placement{Started: true}
			return
		}
		pos, err := s.queue.Push(req)
		if err != nil {
			opErr = err
			return
		}
		placement = Placement{Position: pos}
		s.log.Debug().Msgf("sequencer: queued: source=%s position=%d", req.Source, pos)
	})
	if err != nil {
		return Placement{}, err
	}
	if opErr != nil && ctx.Err() != nil {
		return Placement{}, ctx.Err()
	}
	return placement, opErr
}

// Stop releases the active track and starts the next pending one.
// It is a no-op when idle.
func (s *Sequencer) Stop(ctx context.Context) error {
	return s.do(ctx, func(runCtx context.Context) {
		if s.current == nil {
			return
		}
		stopped := s.releaseLocked()
		s.sendEventLocked(Event{
			Type:    EventTrackStopped,
			Request: stopped.request,
			Info:    stopped.handle.Info(),
		})
		s.advanceLocked(runCtx, false)
	})
}

// OnTrackFinished reports the end of a handle's playback. It is safe to call
// from any goroutine and is ignored if h is no longer the active track.
func (s *Sequencer) OnTrackFinished(h track.Handle, err error) {
	select {
	case s.finished <- finishNotice{handle: h, err: err}:
	case <-s.done:
	}
}

// Pause pauses the active track.
func (s *Sequencer) Pause(ctx context.Context) error {
	return s.withCurrent(ctx, func(cur *slot) {
		cur.handle.Pause()
		s.paused = true
		s.sendEventLocked(Event{Type: EventStateChanged, Request: cur.request, Info: cur.handle.Info()})
	})
}

// Resume resumes the active track.
func (s *Sequencer) Resume(ctx context.Context) error {
	return s.withCurrent(ctx, func(cur *slot) {
		cur.handle.Resume()
		s.paused = false
		s.sendEventLocked(Event{Type: EventStateChanged, Request: cur.request, Info: cur.handle.Info()})
	})
}

// SetVolume sets the playback volume as a fraction in [0, 2]. The value is
// kept for tracks started later.
func (s *Sequencer) SetVolume(ctx context.Context, fraction float64) error {
	var rangeErr error
	err := s.withCurrent(ctx, func(cur *slot) {
		if err := ValidateVolume(fraction); err != nil {
			rangeErr = err
			return
		}
		cur.handle.SetVolume(fraction)
		s.volume = fraction
		s.sendEventLocked(Event{Type: EventStateChanged, Request: cur.request, Info: cur.handle.Info()})
	})
	if err != nil {
		return err
	}
	return rangeErr
}

// ValidateVolume checks that fraction lies in [MinVolume, MaxVolume].
func ValidateVolume(fraction float64) error {
	if math.IsNaN(fraction) {
		return errors.Wrap(ErrOutOfRange, "NaN")
	}
	if err := validate.Var(fraction, "gte=0,lte=2"); err != nil {
		return errors.Wrapf(ErrOutOfRange, "%v", fraction)
	}
	return nil
}

// Snapshot returns the now-playing entry followed by pending entries,
// at most the queue capacity in total.
func (s *Sequencer) Snapshot(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	err := s.do(ctx, func(context.Context) {
		entries = s.snapshotLocked()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Status returns a summary of the sequencer.
func (s *Sequencer) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.do(ctx, func(context.Context) {
		st = Status{
			State:    s.state,
			Paused:   s.paused,
			Volume:   s.volume,
			Pending:  s.queue.Len(),
			Capacity: s.queue.Cap(),
		}
		if s.current != nil {
			e := entryFor(s.current, true)
			st.NowPlaying = &e
		}
	})
	if err != nil {
		return Status{}, err
	}
	return st, nil
}

// do runs fn on the loop and waits for it to finish.
func (s *Sequencer) do(ctx context.Context, fn func(runCtx context.Context)) error {
	finished := make(chan struct{})
	op := func(runCtx context.Context) {
		defer close(finished)
		fn(runCtx)
	}

	select {
	case s.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	case <-s.quit:
		return ErrClosed
	}

	// Once handed off the op runs to completion; the caller may stop waiting.
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) withCurrent(ctx context.Context, fn func(cur *slot)) error {
	var opErr error
	err := s.do(ctx, func(context.Context) {
		if s.current == nil {
			opErr = ErrNotPlaying
			return
		}
		fn(s.current)
	})
	if err != nil {
		return err
	}
	return opErr
}

// startLocked loads and starts req as the active track.
// auto marks starts that follow a completion rather than a command.
func (s *Sequencer) startLocked(ctx context.Context, req track.Request, auto bool) error {
	h, err := s.player.Load(ctx, req, s.OnTrackFinished)
	if err != nil {
		return errors.Wrapf(err, "load %s", req.Source)
	}
	h.SetVolume(s.volume)
	if err := h.Start(); err != nil {
		h.Stop()
		return errors.Wrapf(err, "start %s", req.Source)
	}

	s.current = &slot{request: req, handle: h}
	s.state = StatePlaying
	s.paused = false

	info := h.Info()
	s.log.Info().Msgf("sequencer: track started: title=%s source=%s", info.Title, req.Source)
	s.sendEventLocked(Event{Type: EventTrackStarted, Request: req, Info: info, Auto: auto})
	return nil
}

// releaseLocked stops the active handle and clears the slot.
func (s *Sequencer) releaseLocked() *slot {
	cur := s.current
	cur.announced = true
	cur.handle.Stop()
	s.current = nil
	s.paused = false
	s.state = StateStopped
	return cur
}

// advanceLocked starts the first pending request that loads successfully.
// Failed requests are reported and discarded.
func (s *Sequencer) advanceLocked(ctx context.Context, auto bool) {
	attempts := s.queue.Len()
	for i := 0; i < attempts; i++ {
		req, ok := s.queue.Pop()
		if !ok {
			break
		}
		err := s.startLocked(ctx, req, auto)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Closing; shutdown clears what is left.
			s.state = StateIdle
			return
		}
		s.log.Warn().Err(err).Msgf("sequencer: discarding track: source=%s", req.Source)
		s.sendEventLocked(Event{Type: EventTrackFailed, Request: req, Err: err, Auto: auto})
	}

	s.state = StateIdle
	s.sendEventLocked(Event{Type: EventQueueEmpty, Auto: auto})
}

func (s *Sequencer) handleFinished(ctx context.Context, n finishNotice) {
	if s.current == nil || n.handle == nil || s.current.handle.ID() != n.handle.ID() {
		s.log.Debug().Msg("sequencer: ignoring stale completion")
		return
	}

	cur := s.current
	if !cur.announced {
		cur.announced = true
		if n.err != nil {
			s.log.Warn().Err(n.err).Msgf("sequencer: track ended with error: source=%s", cur.request.Source)
		}
		s.sendEventLocked(Event{
			Type:    EventTrackFinished,
			Request: cur.request,
			Info:    cur.handle.Info(),
			Err:     n.err,
		})
	}
	s.releaseLocked()
	s.advanceLocked(ctx, true)
}

func (s *Sequencer) snapshotLocked() []Entry {
	limit := s.queue.Cap()
	entries := make([]Entry, 0, limit)
	if s.current != nil {
		entries = append(entries, entryFor(s.current, true))
	}
	for _, req := range s.queue.Items() {
		if len(entries) >= limit {
			break
		}
		entries = append(entries, Entry{Request: req})
	}
	return entries
}

func (s *Sequencer) shutdown() {
	if s.current != nil {
		s.releaseLocked()
	}
	s.queue.Clear()
	s.state = StateIdle
	s.log.Debug().Msg("sequencer: loop stopped")
	close(s.done)
	close(s.eventCh)
}

// sendEventLocked sends an event without blocking.
// Must be called on the loop.
func (s *Sequencer) sendEventLocked(e Event) {
	e.State = s.state
	e.Paused = s.paused
	e.Volume = s.volume
	e.Pending = s.queue.Len()

	select {
	case s.eventCh <- e:
	default:
		s.log.Warn().Msgf("sequencer: event channel full, dropping %s", e.Type)
	}
}
