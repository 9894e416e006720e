package auction

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// PlaceResult is returned by PlaceBid.  Outcome reflects the state after any
// proxy bids the new bid provoked; Bid is the caller's bid as inserted.
type PlaceResult struct {
	Bid model.Bid
	Outcome
}

// PlaceBid accepts a manual bid.  The checks run in a fixed order: auction
// open, bidder is not the seller, amount at least the current minimum.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (PlaceResult, error) {
	if err := validateAmount(amount); err != nil {
		return PlaceResult{}, err
	}

	var placed model.Bid
	l, err := e.atomic(ctx, listingID, func(ctx context.Context, l *ledger) error {
		if !l.open() {
			return ErrAuctionNotActive
		}
		if bidderID == l.auction.SellerID {
			return ErrSelfBid
		}
		if minimum := l.minimumBid(); amount.LessThan(minimum) {
			return bidTooLow(minimum)
		}

		b := l.newBid(bidderID, amount)
		if err := l.accept(ctx, b); err != nil {
			return err
		}
		placed = *b
		if _, err := l.resolveProxies(ctx); err != nil {
			return err
		}
		l.flagSuspicious(bidderID)

		if i := l.find(placed.ID); i >= 0 {
			placed = l.bids[i]
		}
		return nil
	})
	if err != nil {
		return PlaceResult{}, err
	}
	e.publish(ctx, l.events)

	out := l.outcome()
	out.ProxyBids = l.proxyBids()
	return PlaceResult{Bid: placed, Outcome: out}, nil
}
