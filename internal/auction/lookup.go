package auction

import (
	"context"
	"errors"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
)

// BidDetail is one bid as seen by a viewer.  Private is true when the
// viewer placed the bid or sells the listing; only then may the proxy
// ceiling be shown.
type BidDetail struct {
	Bid     model.Bid
	Private bool
}

// GetBid reads a single bid without taking the listing lock.
func (e *Engine) GetBid(ctx context.Context, bidID, viewerID string) (BidDetail, error) {
	b, err := e.store.FindBid(ctx, bidID)
	if errors.Is(err, repository.ErrNotFound) {
		return BidDetail{}, ErrBidNotFound
	}
	if err != nil {
		return BidDetail{}, err
	}
	d := BidDetail{Bid: b, Private: viewerID != "" && b.BidderID == viewerID}
	if !d.Private && viewerID != "" {
		a, err := e.store.FindAuction(ctx, b.ListingID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return BidDetail{}, err
		}
		d.Private = a.SellerID == viewerID
	}
	return d, nil
}

// BidderQuery selects a page of one bidder's bids.  Zero values mean
// page 1, 20 items, every status.
type BidderQuery struct {
	Statuses []model.BidStatus
	Page     int
	Limit    int
}

// BidderBids is one page of a bidder's own bids, newest first.
type BidderBids struct {
	Items      []model.Bid
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

// ListBidderBids returns the bids bidderID placed across every listing.
func (e *Engine) ListBidderBids(ctx context.Context, bidderID string, q BidderQuery) (BidderBids, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultHistoryLimit
	case q.Limit > maxHistoryLimit:
		q.Limit = maxHistoryLimit
	}
	page, err := e.store.ListBidderBids(ctx, repository.BidderQuery{
		BidderID: bidderID,
		Statuses: q.Statuses,
		Page:     q.Page,
		Limit:    q.Limit,
	})
	if err != nil {
		return BidderBids{}, err
	}
	return BidderBids{
		Items:      page.Items,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      page.Total,
		TotalPages: (page.Total + q.Limit - 1) / q.Limit,
	}, nil
}
