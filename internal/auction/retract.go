package auction

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
)

// RetractResult describes the auction after a retraction.
type RetractResult struct {
	Bid             model.Bid
	CurrentBid      decimal.Decimal
	BidCount        int
	WinningBidderID string
}

// Retraction reasons are counted in characters after trimming.
const (
	MinReasonLength = 10
	MaxReasonLength = 500
)

// RetractBid withdraws a bid within the retraction window.  When the
// withdrawn bid was leading, the highest remaining bid takes over; with no
// bid left the auction falls back to its starting price.  Rival ceilings
// are not re-run.
func (e *Engine) RetractBid(ctx context.Context, bidID, requesterID, reason string) (RetractResult, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < MinReasonLength || n > MaxReasonLength {
		return RetractResult{}, ErrInvalidReason
	}
	found, err := e.store.FindBid(ctx, bidID)
	if errors.Is(err, repository.ErrNotFound) {
		return RetractResult{}, ErrBidNotFound
	}
	if err != nil {
		return RetractResult{}, err
	}

	var res RetractResult
	l, err := e.atomic(ctx, found.ListingID, func(ctx context.Context, l *ledger) error {
		i := l.find(bidID)
		if i < 0 {
			return ErrBidNotFound
		}
		b := l.bids[i]
		if b.BidderID != requesterID {
			return ErrForbidden
		}
		if l.now.Sub(b.PlacedAt) > e.cfg.RetractionWindow {
			return ErrRetractionWindowExpired
		}
		if !l.open() {
			return ErrAuctionEnded
		}
		if b.Status.Final() {
			return ErrAlreadyFinal
		}

		wasWinning := b.Status == model.BidWinning
		at := l.now
		l.bids[i].Status = model.BidRetracted
		l.bids[i].AutoBidActive = false
		l.bids[i].RetractionReason = reason
		l.bids[i].RetractedAt = &at
		if err := l.updateBid(ctx, i); err != nil {
			return err
		}

		a := &l.auction
		a.BidCount--
		l.touched = true
		if wasWinning {
			if err := l.promoteNext(ctx); err != nil {
				return err
			}
		}

		res = RetractResult{
			Bid:             l.bids[i],
			CurrentBid:      a.CurrentBid,
			BidCount:        a.BidCount,
			WinningBidderID: a.WinningBidderID,
		}
		l.emit(queue.TypeBidRetracted, queue.BidRetracted{
			BidID:           bidID,
			BidderID:        b.BidderID,
			Reason:          reason,
			CurrentBid:      a.CurrentBid,
			WinningBidderID: a.WinningBidderID,
		})
		return nil
	})
	if err != nil {
		return RetractResult{}, err
	}
	e.publish(ctx, l.events)
	return res, nil
}

// promoteNext makes the highest remaining bid WINNING and rederives the
// auction fields from it.
func (l *ledger) promoteNext(ctx context.Context) error {
	a := &l.auction
	n := l.highest()
	if n < 0 {
		a.CurrentBid = a.StartingPrice
		a.ReserveMet = false
		a.WinningBidderID = ""
		return nil
	}
	l.bids[n].Status = model.BidWinning
	if err := l.updateBid(ctx, n); err != nil {
		return err
	}
	next := l.bids[n]
	a.CurrentBid = next.Amount
	a.ReserveMet = !a.HasReserve() || next.Amount.GreaterThanOrEqual(a.ReservePrice.Decimal)
	a.WinningBidderID = next.BidderID
	return nil
}
