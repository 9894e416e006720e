package auction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// ledger is the working state of one listing unit.  Bid writes go straight
// to the LedgerTx; the auction row is kept here and written once by flush.
type ledger struct {
	e       *Engine
	tx      repository.LedgerTx
	now     time.Time
	auction model.Auction
	bids    []model.Bid

	touched  bool
	extended bool
	placed   []model.Bid
	events   []queue.Event
}

func newLedger(e *Engine, tx repository.LedgerTx, now time.Time) *ledger {
	return &ledger{e: e, tx: tx, now: now, auction: tx.Auction(), bids: tx.Bids()}
}

// open reports whether the auction accepts bids at l.now.
func (l *ledger) open() bool {
	return l.auction.Status == model.AuctionActive && l.auction.EndTime.After(l.now)
}

func (l *ledger) incrementAt(amount decimal.Decimal) decimal.Decimal {
	return IncrementAt(l.auction, amount)
}

func (l *ledger) minimumBid() decimal.Decimal { return MinimumBid(l.auction) }

// winning returns the index of the WINNING bid, or -1.
func (l *ledger) winning() int {
	for i := range l.bids {
		if l.bids[i].Status == model.BidWinning {
			return i
		}
	}
	return -1
}

// leader returns the WINNING bid, or the zero Bid when nobody leads.
func (l *ledger) leader() model.Bid {
	if w := l.winning(); w >= 0 {
		return l.bids[w]
	}
	return model.Bid{}
}

func (l *ledger) find(bidID string) int {
	for i := range l.bids {
		if l.bids[i].ID == bidID {
			return i
		}
	}
	return -1
}

// highest returns the best non-retracted bid by amount desc, placed_at asc,
// seq asc, or -1 when every bid is retracted.
func (l *ledger) highest() int {
	best := -1
	for i, b := range l.bids {
		if b.Status == model.BidRetracted {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cur := l.bids[best]
		if b.Amount.GreaterThan(cur.Amount) || (b.Amount.Equal(cur.Amount) && b.PlacedBefore(cur)) {
			best = i
		}
	}
	return best
}

// ceilingOf returns the bidder's standing proxy registration, or -1.
func (l *ledger) ceilingOf(bidderID string) int {
	for i, b := range l.bids {
		if b.BidderID == bidderID && b.IsStandingCeiling() {
			return i
		}
	}
	return -1
}

func (l *ledger) updateBid(ctx context.Context, i int) error {
	return l.tx.UpdateBid(ctx, l.bids[i])
}

func (l *ledger) insertBid(ctx context.Context, b *model.Bid) error {
	if err := l.tx.InsertBid(ctx, b); err != nil {
		return err
	}
	l.bids = append(l.bids, *b)
	return nil
}

// accept is the mutation core shared by manual, proxy and auto-bid
// placement.  It demotes the current leader, inserts b as WINNING and
// rewrites the derived auction fields.  The anti-snipe extension fires at
// most once per unit.
func (l *ledger) accept(ctx context.Context, b *model.Bid) error {
	if w := l.winning(); w >= 0 {
		prev := l.bids[w]
		l.bids[w].Status = model.BidOutbid
		if err := l.updateBid(ctx, w); err != nil {
			return err
		}
		if prev.BidderID != b.BidderID {
			l.emit(queue.TypeBidOutbid, queue.BidOutbid{
				BidID:       prev.ID,
				BidderID:    prev.BidderID,
				Amount:      prev.Amount,
				NewAmount:   b.Amount,
				NewLeaderID: b.BidderID,
			})
		}
	}

	b.Status = model.BidWinning
	if err := l.insertBid(ctx, b); err != nil {
		return err
	}

	a := &l.auction
	a.ReserveMet = !a.HasReserve() || b.Amount.GreaterThanOrEqual(a.ReservePrice.Decimal)
	a.CurrentBid = b.Amount
	a.BidCount++
	a.WinningBidderID = b.BidderID
	l.touched = true

	if !l.extended && a.EndTime.Sub(l.now) <= l.e.cfg.ExtensionWindow && a.ExtensionCount < a.MaxExtensions {
		a.EndTime = a.EndTime.Add(l.e.cfg.ExtensionDuration)
		a.ExtensionCount++
		l.extended = true
		l.emit(queue.TypeAuctionExtended, queue.AuctionExtended{
			EndTime:        a.EndTime,
			ExtensionCount: a.ExtensionCount,
			MaxExtensions:  a.MaxExtensions,
		})
	}

	l.placed = append(l.placed, *b)
	l.emit(queue.TypeBidPlaced, queue.BidPlaced{
		BidID:      b.ID,
		BidderID:   b.BidderID,
		Amount:     b.Amount,
		IsAutoBid:  b.IsAutoBid,
		CurrentBid: a.CurrentBid,
		BidCount:   a.BidCount,
		EndTime:    a.EndTime,
	})
	return nil
}

// newBid returns an unsaved bid for the listing placed at l.now.
func (l *ledger) newBid(bidderID string, amount decimal.Decimal) *model.Bid {
	return &model.Bid{
		ID:        l.e.newID(),
		ListingID: l.auction.ID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  l.now,
		Status:    model.BidActive,
	}
}

// flagSuspicious marks the auction when bidderID has more than the
// configured number of bids inside the suspicious window.
func (l *ledger) flagSuspicious(bidderID string) {
	if l.auction.SuspiciousActivity {
		return
	}
	since := l.now.Add(-l.e.cfg.SuspiciousWindow)
	n := 0
	for _, b := range l.bids {
		if b.BidderID == bidderID && b.PlacedAt.After(since) {
			n++
		}
	}
	if n > l.e.cfg.SuspiciousBids {
		l.auction.SuspiciousActivity = true
		l.touched = true
		utils.Warn("suspicious bidding activity", map[string]any{
			"listing_id": l.auction.ID,
			"bidder_id":  bidderID,
			"bids":       n,
			"window":     l.e.cfg.SuspiciousWindow.String(),
		})
	}
}

func (l *ledger) emit(eventType string, payload any) {
	ev, err := queue.NewEvent(eventType, l.auction.ID, l.now, payload)
	if err != nil {
		utils.Error("event encode failed", map[string]any{"type": eventType, "error": err.Error()})
		return
	}
	l.events = append(l.events, ev)
}

// flush writes the auction row when anything changed it.
func (l *ledger) flush(ctx context.Context) error {
	if !l.touched {
		return nil
	}
	return l.tx.SaveAuction(ctx, l.auction)
}

// outcome summarizes the auction after the unit.
func (l *ledger) outcome() Outcome {
	return Outcome{
		CurrentBid:      l.auction.CurrentBid,
		BidCount:        l.auction.BidCount,
		Extended:        l.extended,
		EndTime:         l.auction.EndTime,
		WinningBidderID: l.auction.WinningBidderID,
		NextMinimumBid:  l.minimumBid(),
	}
}

// Outcome is the auction state returned by bid-placing operations.
type Outcome struct {
	CurrentBid      decimal.Decimal
	BidCount        int
	Extended        bool
	EndTime         time.Time
	WinningBidderID string
	NextMinimumBid  decimal.Decimal
	// ProxyBids lists the bids placed on behalf of auto-bidders during
	// the operation, in placement order.
	ProxyBids []model.Bid
}
