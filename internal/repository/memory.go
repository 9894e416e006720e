package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// MemoryStore keeps auctions and bids in process memory.  Each listing has
// its own mutex held for the whole unit; a unit works on copies that are
// swapped in only when its callback succeeds.  It backs tests and the
// STORE_DRIVER=memory mode.
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]model.Auction
	bids     map[string][]model.Bid // listing id -> bids in seq order
	bidIndex map[string]string      // bid id -> listing id
	txs      map[string]model.Transaction
	profiles map[string]model.Profile
	seq      uint64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: map[string]model.Auction{},
		bids:     map[string][]model.Bid{},
		bidIndex: map[string]string{},
		txs:      map[string]model.Transaction{},
		profiles: map[string]model.Profile{},
		locks:    map[string]*sync.Mutex{},
	}
}

// AddAuction inserts or replaces an auction row.  Listing CRUD lives outside
// the engine, so this is how tests and local runs seed auctions.
func (s *MemoryStore) AddAuction(a model.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[a.ID] = a
}

// AddProfile inserts or replaces a bidder profile.
func (s *MemoryStore) AddProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// Transactions returns the settlement rows recorded so far.
func (s *MemoryStore) Transactions() []model.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryStore) listingLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *MemoryStore) WithListing(ctx context.Context, listingID string, fn func(ctx context.Context, tx LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.listingLock(listingID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	a, ok := s.auctions[listingID]
	bids := append([]model.Bid(nil), s.bids[listingID]...)
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	tx := &memoryTx{store: s, auction: a, bids: bids}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.auctions[listingID] = tx.auction
	s.bids[listingID] = tx.bids
	for _, b := range tx.bids {
		s.bidIndex[b.ID] = listingID
	}
	for _, t := range tx.txs {
		s.txs[t.ID] = t
	}
	return nil
}

func (s *MemoryStore) FindAuction(_ context.Context, id string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return model.Auction{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) FindBid(_ context.Context, id string) (model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	listing, ok := s.bidIndex[id]
	if !ok {
		return model.Bid{}, ErrNotFound
	}
	for _, b := range s.bids[listing] {
		if b.ID == id {
			return b, nil
		}
	}
	return model.Bid{}, ErrNotFound
}

func (s *MemoryStore) ListBids(_ context.Context, q BidQuery) (BidPage, error) {
	s.mu.RLock()
	all := s.bids[q.ListingID]
	items := make([]model.Bid, 0, len(all))
	for _, b := range all {
		if !q.IncludeRetracted && b.Status == model.BidRetracted {
			continue
		}
		items = append(items, b)
	}
	s.mu.RUnlock()

	sort.SliceStable(items, func(i, j int) bool {
		if q.Ascending {
			return items[i].PlacedBefore(items[j])
		}
		return items[j].PlacedBefore(items[i])
	})
	return paginate(items, q.Offset(), q.Limit), nil
}

func (s *MemoryStore) ListBidderBids(_ context.Context, q BidderQuery) (BidPage, error) {
	s.mu.RLock()
	items := make([]model.Bid, 0)
	for _, bids := range s.bids {
		for _, b := range bids {
			if q.matches(b) {
				items = append(items, b)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[j].PlacedBefore(items[i]) })
	return paginate(items, q.Offset(), q.Limit), nil
}

func paginate(items []model.Bid, off, limit int) BidPage {
	page := BidPage{Total: len(items)}
	if off >= len(items) {
		page.Items = []model.Bid{}
		return page
	}
	end := len(items)
	if limit > 0 && off+limit < end {
		end = off + limit
	}
	page.Items = items[off:end]
	return page
}

func (s *MemoryStore) DueAuctions(_ context.Context, now time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	due := make([]model.Auction, 0)
	for _, a := range s.auctions {
		if a.Status == model.AuctionActive && !a.EndTime.After(now) {
			due = append(due, a)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].EndTime.Equal(due[j].EndTime) {
			return due[i].ID < due[j].ID
		}
		return due[i].EndTime.Before(due[j].EndTime)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	ids := make([]string, len(due))
	for i, a := range due {
		ids[i] = a.ID
	}
	return ids, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Profiles(_ context.Context, ids []string) (map[string]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]model.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) nextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// memoryTx is the working copy of one listing during a unit.
type memoryTx struct {
	store   *MemoryStore
	auction model.Auction
	bids    []model.Bid
	txs     []model.Transaction
}

func (t *memoryTx) Auction() model.Auction { return t.auction }

func (t *memoryTx) Bids() []model.Bid { return append([]model.Bid(nil), t.bids...) }

func (t *memoryTx) InsertBid(_ context.Context, b *model.Bid) error {
	b.Seq = t.store.nextSeq()
	t.bids = append(t.bids, *b)
	return nil
}

func (t *memoryTx) UpdateBid(_ context.Context, b model.Bid) error {
	for i := range t.bids {
		if t.bids[i].ID == b.ID {
			t.bids[i] = b
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) SaveAuction(_ context.Context, a model.Auction) error {
	if a.ID != t.auction.ID {
		return ErrNotFound
	}
	t.auction = a
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr model.Transaction) error {
	t.txs = append(t.txs, tr)
	return nil
}
