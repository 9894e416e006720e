// Package live fans committed auction events out to websocket subscribers,
// one hub per listing.
package live

import "sync"

// Subscription receives broadcast values on C until it is unsubscribed.
type Subscription[T any] struct {
	C    <-chan T
	ch   chan T
	once sync.Once
}

type hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Subscription[T]]struct{}
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

func (h *hub[T]) subscribe(buffer int) *Subscription[T] {
	ch := make(chan T, buffer)
	sub := &Subscription[T]{C: ch, ch: ch}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// unsubscribe reports how many subscribers remain.
func (h *hub[T]) unsubscribe(sub *Subscription[T]) int {
	h.mu.Lock()
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.ch) })
	return n
}

// broadcast never blocks; a subscriber with a full buffer misses the value.
func (h *hub[T]) broadcast(value T) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
			dropped++
		}
	}
	return dropped
}

func (h *hub[T]) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
