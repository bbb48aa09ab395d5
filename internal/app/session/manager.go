// Package session provides the per-guild voice session manager.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/osa030/decobox/internal/app/notification"
	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/app/session/registry"
	"github.com/osa030/decobox/internal/domain/voice"
	"github.com/osa030/decobox/internal/infra/logger"
	"github.com/osa030/decobox/internal/infra/metrics"
)

var (
	ErrAlreadyJoined  = errors.New("already in a voice channel")
	ErrNotJoined      = errors.New("not in a voice channel")
	ErrUserNotInVoice = errors.New("user is not in a voice channel")
	ErrSameChannel    = errors.New("already in that voice channel")
)

// Connector is the chat service side of voice sessions.
type Connector interface {
	JoinVoice(ctx context.Context, guildID, channelID string) (voice.Conn, error)
	UserVoiceChannel(guildID, userID string) (string, bool)
	ChannelName(channelID string) string
	GuildName(guildID string) string
}

// Store persists bindings and volumes across restarts.
type Store interface {
	SaveBinding(ctx context.Context, b voice.Binding) error
	DeleteBinding(ctx context.Context, guildID string) error
	Bindings(ctx context.Context) ([]voice.Binding, error)
	SaveVolume(ctx context.Context, guildID string, volume float64) error
	Volume(ctx context.Context, guildID string) (float64, bool, error)
}

// PlayerFactory creates the player of a new session.
type PlayerFactory func(conn voice.Conn) playback.Player

// Config holds session configuration.
type Config struct {
	QueueCapacity int
	DefaultVolume float64
}

// RejoinResult reports one persisted binding that was rejoined.
type RejoinResult struct {
	Binding voice.Binding
	Err     error
}

// Manager owns every guild's voice session.
type Manager struct {
	mu sync.Mutex

	config       Config
	connector    Connector
	store        Store
	newPlayer    PlayerFactory
	notification *notification.Manager
	metrics      *metrics.Metrics
	registry     *registry.BindingRegistry
	sessions     map[string]*Session
	joining      map[string]struct{} // Guilds with a voice handshake in flight
	log          zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a session manager. m may be nil.
func NewManager(
	cfg Config,
	connector Connector,
	store Store,
	newPlayer PlayerFactory,
	notif *notification.Manager,
	m *metrics.Metrics,
) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config:       cfg,
		connector:    connector,
		store:        store,
		newPlayer:    newPlayer,
		notification: notif,
		metrics:      m,
		registry:     registry.NewBindingRegistry(),
		sessions:     make(map[string]*Session),
		joining:      make(map[string]struct{}),
		log:          logger.For("session"),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Binding returns a guild's current binding.
func (m *Manager) Binding(guildID string) (*voice.Binding, bool) {
	return m.registry.Binding(guildID)
}

// Notifications returns the manager that receives every session's events.
func (m *Manager) Notifications() *notification.Manager {
	return m.notification
}

// Get returns a guild's session.
func (m *Manager) Get(guildID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[guildID]
	return s, ok
}

// Sessions returns every active session.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, b := range m.registry.All() {
		if s, ok := m.sessions[b.GuildID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Join connects to the voice channel userID is in and binds textChannelID.
func (m *Manager) Join(ctx context.Context, guildID, userID, textChannelID string) (*Session, error) {
	if s, ok := m.Get(guildID); ok {
		return s, ErrAlreadyJoined
	}
	channelID, ok := m.connector.UserVoiceChannel(guildID, userID)
	if !ok {
		return nil, ErrUserNotInVoice
	}

	b := voice.NewBinding(
		guildID, m.connector.GuildName(guildID),
		channelID, m.connector.ChannelName(channelID),
		textChannelID,
	)
	s, err := m.join(ctx, *b)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveBinding(ctx, *b); err != nil {
		m.log.Warn().Err(err).Msgf("session: failed to persist binding: guild=%s", guildID)
	}
	return s, nil
}

func (m *Manager) join(ctx context.Context, b voice.Binding) (*Session, error) {
	if err := m.reserve(b.GuildID); err != nil {
		return nil, err
	}
	// The handshake can take a while; other guilds must not wait on it.
	conn, err := m.connector.JoinVoice(ctx, b.GuildID, b.VoiceChannelID)
	if err != nil {
		m.release(b.GuildID)
		return nil, err
	}

	volume := m.config.DefaultVolume
	if v, ok, err := m.store.Volume(ctx, b.GuildID); err != nil {
		m.log.Warn().Err(err).Msgf("session: failed to load volume: guild=%s", b.GuildID)
	} else if ok {
		volume = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.joining, b.GuildID)
	if err := m.registry.Bind(b); err != nil {
		_ = conn.Disconnect()
		return nil, err
	}

	seq := playback.NewSequencer(m.newPlayer(conn), playback.Config{
		Name:          b.GuildID,
		Capacity:      m.config.QueueCapacity,
		DefaultVolume: volume,
	})
	sctx, cancel := context.WithCancel(m.ctx)
	s := &Session{
		guildID:  b.GuildID,
		conn:     conn,
		seq:      seq,
		store:    m.store,
		registry: m.registry,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		if err := seq.Run(sctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error().Err(err).Msgf("session: sequencer stopped: guild=%s", b.GuildID)
		}
	}()
	go s.pump(m.notification)

	m.sessions[b.GuildID] = s
	m.observeSessions()
	m.log.Info().Msgf("session: joined: guild=%s voice=%s text=%s", b.GuildID, b.VoiceChannelName, b.TextChannelID)
	return s, nil
}

// reserve marks guildID as joining unless it already has or is getting a session.
func (m *Manager) reserve(guildID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[guildID]; ok {
		return ErrAlreadyJoined
	}
	if _, ok := m.joining[guildID]; ok {
		return ErrAlreadyJoined
	}
	m.joining[guildID] = struct{}{}
	return nil
}

func (m *Manager) release(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.joining, guildID)
}

// Move moves a guild's session to the voice channel userID is in.
func (m *Manager) Move(ctx context.Context, guildID, userID string) (voice.Binding, error) {
	s, ok := m.Get(guildID)
	if !ok {
		return voice.Binding{}, ErrNotJoined
	}
	channelID, ok := m.connector.UserVoiceChannel(guildID, userID)
	if !ok {
		return voice.Binding{}, ErrUserNotInVoice
	}
	if b, ok := m.registry.Binding(guildID); ok && b.VoiceChannelID == channelID {
		return *b, ErrSameChannel
	}

	if err := s.conn.Move(ctx, channelID); err != nil {
		return voice.Binding{}, err
	}
	b, err := m.registry.Move(guildID, channelID, m.connector.ChannelName(channelID))
	if err != nil {
		return voice.Binding{}, err
	}
	if err := m.store.SaveBinding(ctx, b); err != nil {
		m.log.Warn().Err(err).Msgf("session: failed to persist binding: guild=%s", guildID)
	}
	m.log.Info().Msgf("session: moved: guild=%s voice=%s", guildID, b.VoiceChannelName)
	return b, nil
}

// Leave stops a guild's playback, disconnects and forgets its binding.
func (m *Manager) Leave(ctx context.Context, guildID string) (voice.Binding, error) {
	b, err := m.detach(guildID)
	if err != nil {
		return voice.Binding{}, err
	}
	if err := m.store.DeleteBinding(ctx, guildID); err != nil {
		m.log.Warn().Err(err).Msgf("session: failed to delete binding: guild=%s", guildID)
	}
	return b, nil
}

// DetachAll leaves every session but keeps the bindings persisted so
// Rejoin can restore them.
func (m *Manager) DetachAll() []voice.Binding {
	var left []voice.Binding
	for _, b := range m.registry.All() {
		if _, err := m.detach(b.GuildID); err == nil {
			left = append(left, b)
		}
	}
	return left
}

func (m *Manager) detach(guildID string) (voice.Binding, error) {
	m.mu.Lock()
	s, ok := m.sessions[guildID]
	if ok {
		delete(m.sessions, guildID)
	}
	m.observeSessions()
	m.mu.Unlock()
	if !ok {
		return voice.Binding{}, ErrNotJoined
	}

	s.close()
	if m.notification != nil {
		m.notification.Forget(guildID)
	}
	b, err := m.registry.Unbind(guildID)
	if err != nil {
		return voice.Binding{}, err
	}
	if err := s.conn.Disconnect(); err != nil {
		m.log.Warn().Err(err).Msgf("session: disconnect failed: guild=%s", guildID)
	}
	m.log.Info().Msgf("session: left: guild=%s voice=%s", guildID, b.VoiceChannelName)
	return b, nil
}

// Rejoin restores persisted bindings that have no session.
// Bindings that cannot be rejoined are forgotten.
func (m *Manager) Rejoin(ctx context.Context) ([]RejoinResult, error) {
	bindings, err := m.store.Bindings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load bindings")
	}

	var results []RejoinResult
	for _, b := range bindings {
		if _, ok := m.Get(b.GuildID); ok {
			continue
		}
		b.JoinedAt = time.Now()
		_, err := m.join(ctx, b)
		if err != nil {
			m.log.Warn().Err(err).Msgf("session: rejoin failed: guild=%s", b.GuildID)
			if derr := m.store.DeleteBinding(ctx, b.GuildID); derr != nil {
				m.log.Warn().Err(derr).Msgf("session: failed to delete binding: guild=%s", b.GuildID)
			}
		}
		results = append(results, RejoinResult{Binding: b, Err: err})
	}
	return results, nil
}

// Close leaves every session, keeping persisted bindings.
func (m *Manager) Close() {
	m.DetachAll()
	m.cancel()
}

func (m *Manager) observeSessions() {
	if m.metrics != nil {
		m.metrics.VoiceSessions.Observe(float64(len(m.sessions)))
	}
}
