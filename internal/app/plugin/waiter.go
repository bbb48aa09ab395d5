package plugin

import (
	"context"
	"sync"

	"github.com/osa030/decobox/internal/domain/chat"
)

type waiter struct {
	match func(chat.Message) bool
	ch    chan chat.Message
}

// waiters hands incoming messages to goroutines waiting for them.
type waiters struct {
	mu   sync.Mutex
	list []*waiter
}

// wait blocks until a message satisfying match arrives or ctx is done.
func (w *waiters) wait(ctx context.Context, match func(chat.Message) bool) (chat.Message, error) {
	wt := &waiter{match: match, ch: make(chan chat.Message, 1)}
	w.mu.Lock()
	w.list = append(w.list, wt)
	w.mu.Unlock()

	select {
	case msg := <-wt.ch:
		return msg, nil
	case <-ctx.Done():
		w.remove(wt)
		return chat.Message{}, ctx.Err()
	}
}

// deliver passes msg to every waiter it satisfies. Each waiter receives
// at most one message.
func (w *waiters) deliver(msg chat.Message) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	delivered := 0
	kept := w.list[:0]
	for _, wt := range w.list {
		if wt.match(msg) {
			wt.ch <- msg
			delivered++
			continue
		}
		kept = append(kept, wt)
	}
	for i := len(kept); i < len(w.list); i++ {
		w.list[i] = nil
	}
	w.list = kept
	return delivered
}

func (w *waiters) remove(target *waiter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, wt := range w.list {
		if wt == target {
			w.list = append(w.list[:i], w.list[i+1:]...)
			return
		}
	}
}

func (w *waiters) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.list)
}
