package auction

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// Settlement is the terminal state one auction reached during a sweep.
type Settlement struct {
	ListingID        string
	Status           model.AuctionStatus
	WinnerID         string
	WinningBidID     string
	Amount           *decimal.Decimal
	TransactionID    string
	DecisionDeadline *time.Time
}

// SweepFailure names an auction whose settlement rolled back.
type SweepFailure struct {
	ListingID string
	Error     string
}

// SweepResult summarizes one sweep.  Skipped counts due auctions another
// unit settled or extended between listing and locking.
type SweepResult struct {
	Due            int
	Settled        []Settlement
	Skipped        int
	Failed         []SweepFailure
	NotifyFailures int
}

// Sweep settles every active auction whose end time has passed.  Each
// auction is its own unit and failure domain: a failed auction is logged,
// reported and left active so the next sweep retries it.  Only listing the
// due auctions can fail the sweep as a whole.
func (e *Engine) Sweep(ctx context.Context) (SweepResult, error) {
	ids, err := e.store.DueAuctions(ctx, e.now(), e.cfg.SettleBatchSize)
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Due: len(ids), Settled: []Settlement{}, Failed: []SweepFailure{}}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(e.cfg.SettleConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			s, events, ok, err := e.settle(ctx, id)
			notifyFailed := 0
			if err == nil && ok {
				notifyFailed = e.publish(ctx, events)
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				utils.Error("auction settlement failed", map[string]any{"listing_id": id, "error": err.Error()})
				res.Failed = append(res.Failed, SweepFailure{ListingID: id, Error: err.Error()})
			case !ok:
				res.Skipped++
			default:
				utils.Info("auction settled", map[string]any{"listing_id": id, "status": string(s.Status), "winner_id": s.WinnerID})
				res.Settled = append(res.Settled, s)
				res.NotifyFailures += notifyFailed
			}
			return nil
		})
	}
	_ = g.Wait()
	return res, nil
}

// SettleAuction runs the settlement of a single auction.  It reports false
// when the auction is not due.
func (e *Engine) SettleAuction(ctx context.Context, listingID string) (Settlement, bool, error) {
	s, events, ok, err := e.settle(ctx, listingID)
	if err != nil || !ok {
		return Settlement{}, ok, err
	}
	e.publish(ctx, events)
	return s, true, nil
}

func (e *Engine) settle(ctx context.Context, listingID string) (Settlement, []queue.Event, bool, error) {
	var (
		s  Settlement
		ok bool
	)
	l, err := e.atomic(ctx, listingID, func(ctx context.Context, l *ledger) error {
		s, ok = Settlement{}, false
		a := &l.auction
		if a.Status != model.AuctionActive || a.EndTime.After(l.now) {
			return nil
		}
		ok = true
		s = Settlement{ListingID: a.ID}

		w := l.winning()
		if w < 0 {
			w = l.highest()
		}
		at := l.now
		a.EndedAt = &at
		l.touched = true

		switch {
		case w < 0:
			a.Status = model.AuctionEndedUnsold
		case !a.HasReserve() || l.bids[w].Amount.GreaterThanOrEqual(a.ReservePrice.Decimal):
			l.bids[w].Status = model.BidWon
			if err := l.updateBid(ctx, w); err != nil {
				return err
			}
			win := l.bids[w]
			tr := model.Transaction{
				ID:        e.newID(),
				ListingID: a.ID,
				BidID:     win.ID,
				SellerID:  a.SellerID,
				BuyerID:   win.BidderID,
				Amount:    win.Amount,
				Currency:  a.Currency,
				Status:    model.TransactionPending,
				CreatedAt: at,
			}
			if err := l.tx.InsertTransaction(ctx, tr); err != nil {
				return err
			}
			a.Status = model.AuctionEndedSuccess
			a.WinningBidderID = win.BidderID
			s.WinnerID = win.BidderID
			s.WinningBidID = win.ID
			s.Amount = &win.Amount
			s.TransactionID = tr.ID
		default:
			deadline := at.Add(e.cfg.DecisionWindow)
			a.Status = model.AuctionEndedReserveNotMet
			a.DecisionDeadline = &deadline
			s.DecisionDeadline = &deadline
		}
		s.Status = a.Status

		l.emit(queue.TypeAuctionSettled, queue.AuctionSettled{
			Status:           string(s.Status),
			SellerID:         a.SellerID,
			WinnerID:         s.WinnerID,
			WinningBidID:     s.WinningBidID,
			Amount:           s.Amount,
			TransactionID:    s.TransactionID,
			DecisionDeadline: s.DecisionDeadline,
		})
		return nil
	})
	if err != nil {
		return Settlement{}, nil, false, err
	}
	return s, l.events, ok, nil
}
