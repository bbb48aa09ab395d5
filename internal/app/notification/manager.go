// Package notification fans playback events of every voice session out to
// subscribers, and renders them into chat announcements.
package notification

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/osa030/decobox/internal/app/playback"
	"github.com/osa030/decobox/internal/infra/logger"
)

// Notification is a playback event of one guild's session.
type Notification struct {
	SequenceNo    uint64 // Counts the guild's notifications, starting at 1
	GuildID       string
	TextChannelID string // Channel the session is bound to
	Event         playback.Event
	At            time.Time
}

// Stream receives notifications.
type Stream interface {
	Send(*Notification) error
}

type subscription struct {
	id     string
	stream Stream
	guilds []string // Empty receives every guild
}

func (s *subscription) wants(guildID string) bool {
	return len(s.guilds) == 0 || slices.Contains(s.guilds, guildID)
}

// Manager delivers notifications to subscribed streams.
// A stream that does not accept a notification within the send timeout
// misses it; later notifications are still offered.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequence      map[string]uint64 // guild ID -> last sequence number
	timeout       time.Duration
	log           zerolog.Logger
}

// NewManager creates a notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sequence:      make(map[string]uint64),
		timeout:       500 * time.Millisecond,
		log:           logger.For("notification"),
	}
}

// Subscribe registers stream for the given guilds, or for every guild when
// none are given. It returns the subscription ID.
func (m *Manager) Subscribe(stream Stream, guildIDs ...string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
		guilds: slices.Clone(guildIDs),
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast numbers n within its guild and offers it to every interested
// subscriber concurrently. It returns once each has accepted it or timed out.
func (m *Manager) Broadcast(n *Notification) {
	m.mu.Lock()
	m.sequence[n.GuildID]++
	n.SequenceNo = m.sequence[n.GuildID]
	if n.At.IsZero() {
		n.At = time.Now()
	}
	var subs []*subscription
	for _, sub := range m.subscriptions {
		if sub.wants(n.GuildID) {
			subs = append(subs, sub)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		sub := sub
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.offer(sub, n)
		}()
	}
	wg.Wait()
}

func (m *Manager) offer(sub *subscription, n *Notification) {
	done := make(chan struct{})
	go func() {
		// Streams report their own failures
		_ = sub.stream.Send(n)
		close(done)
	}()

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		m.log.Warn().Msgf("notification: subscriber timed out: id=%s guild=%s seq=%d",
			sub.id, n.GuildID, n.SequenceNo)
	}
}

// Forget drops a guild's sequence counter, so its next notification is
// numbered from 1 again.
func (m *Manager) Forget(guildID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sequence, guildID)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.subscriptions)
	clear(m.sequence)
}
