package auction

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// AutoBidResult is returned by SetupAutoBid.  Registration is the proxy
// registration bid in its state after the cascade ran.
type AutoBidResult struct {
	Registration model.Bid
	Outcome
}

// SetupAutoBid registers a ceiling for bidderID.  The registration bid is
// placed at initialBid, or at the current minimum when initialBid is nil,
// and rival ceilings get to answer it in the same unit.
func (e *Engine) SetupAutoBid(ctx context.Context, listingID, bidderID string, maxAmount decimal.Decimal, initialBid *decimal.Decimal) (AutoBidResult, error) {
	if err := validateAmount(maxAmount); err != nil {
		return AutoBidResult{}, err
	}
	if initialBid != nil {
		if err := validateAmount(*initialBid); err != nil {
			return AutoBidResult{}, err
		}
	}

	var regID string
	l, err := e.atomic(ctx, listingID, func(ctx context.Context, l *ledger) error {
		if !l.open() {
			return ErrAuctionNotActive
		}
		if bidderID == l.auction.SellerID {
			return ErrSelfBid
		}
		if l.ceilingOf(bidderID) >= 0 {
			return ErrDuplicateAutoBid
		}
		minimum := l.minimumBid()
		if maxAmount.LessThan(minimum) {
			return bidTooLow(minimum)
		}
		amount := minimum
		if initialBid != nil {
			if initialBid.LessThan(minimum) {
				return bidTooLow(minimum)
			}
			if initialBid.GreaterThan(maxAmount) {
				return ErrInvalidAmount
			}
			amount = *initialBid
		}

		reg := l.newBid(bidderID, amount)
		reg.IsAutoBid = true
		reg.AutoBidActive = true
		reg.MaxAutoBid = decimal.NewNullDecimal(maxAmount)
		regID = reg.ID
		if amount.GreaterThan(l.auction.CurrentBid) {
			if err := l.accept(ctx, reg); err != nil {
				return err
			}
		} else {
			if err := l.insertBid(ctx, reg); err != nil {
				return err
			}
			l.auction.BidCount++
			l.touched = true
		}
		if _, err := l.resolveProxies(ctx); err != nil {
			return err
		}
		l.flagSuspicious(bidderID)
		return nil
	})
	if err != nil {
		return AutoBidResult{}, err
	}
	e.publish(ctx, l.events)

	out := l.outcome()
	out.ProxyBids = l.proxyBids()
	return AutoBidResult{Registration: l.bids[l.find(regID)], Outcome: out}, nil
}

// CancelAutoBid deactivates the bidder's standing registration.  Bids
// already placed stay binding.  Ended auctions are accepted so a bidder
// can always withdraw a ceiling.
func (e *Engine) CancelAutoBid(ctx context.Context, listingID, bidderID string) (model.Bid, error) {
	var reg model.Bid
	_, err := e.atomic(ctx, listingID, func(ctx context.Context, l *ledger) error {
		i := l.ceilingOf(bidderID)
		if i < 0 {
			return ErrAutoBidNotFound
		}
		l.bids[i].AutoBidActive = false
		if err := l.updateBid(ctx, i); err != nil {
			return err
		}
		reg = l.bids[i]
		return nil
	})
	if err != nil {
		return model.Bid{}, err
	}
	return reg, nil
}
