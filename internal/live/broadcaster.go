package live

import (
	"context"
	"sync"

	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// Broadcaster implements the engine's publisher interface by handing every
// event to the subscribers of its listing.
type Broadcaster struct {
	mu   sync.Mutex
	hubs map[string]*hub[queue.Event]
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{hubs: make(map[string]*hub[queue.Event])}
}

// Subscribe registers a listener for listingID.  The caller must pass the
// subscription to Unsubscribe when done.
func (b *Broadcaster) Subscribe(listingID string, buffer int) *Subscription[queue.Event] {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hubs[listingID]
	if !ok {
		h = newHub[queue.Event]()
		b.hubs[listingID] = h
	}
	return h.subscribe(buffer)
}

// Unsubscribe closes sub and drops the listing hub once it is empty.  It is
// safe to call more than once.
func (b *Broadcaster) Unsubscribe(listingID string, sub *Subscription[queue.Event]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.hubs[listingID]
	if !ok {
		sub.once.Do(func() { close(sub.ch) })
		return
	}
	if h.unsubscribe(sub) == 0 {
		delete(b.hubs, listingID)
	}
}

// Publish never fails; slow subscribers lose events instead of stalling
// the engine.
func (b *Broadcaster) Publish(_ context.Context, ev queue.Event) error {
	b.mu.Lock()
	h := b.hubs[ev.ListingID]
	b.mu.Unlock()
	if h == nil {
		return nil
	}
	if dropped := h.broadcast(ev); dropped > 0 {
		utils.Warn("live subscribers dropped event", map[string]any{
			"listing_id": ev.ListingID, "type": ev.Type, "dropped": dropped,
		})
	}
	return nil
}

// Subscribers returns the number of listeners on listingID.
func (b *Broadcaster) Subscribers(listingID string) int {
	b.mu.Lock()
	h := b.hubs[listingID]
	b.mu.Unlock()
	if h == nil {
		return 0
	}
	return h.len()
}
