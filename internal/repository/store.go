package repository

import (
	"context"
	"time"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// LedgerTx is one serialized unit of work on a single listing.  The auction
// row and its bids are loaded when the unit starts; writes become visible
// to other units only when the callback passed to WithListing returns nil.
type LedgerTx interface {
	// Auction returns the auction row as locked at the start of the unit.
	Auction() model.Auction
	// Bids returns every bid of the listing, retracted ones included,
	// in insertion (seq) order.
	Bids() []model.Bid
	// InsertBid appends a bid and assigns its Seq.
	InsertBid(ctx context.Context, b *model.Bid) error
	// UpdateBid rewrites the mutable columns of an existing bid.
	UpdateBid(ctx context.Context, b model.Bid) error
	// SaveAuction rewrites the mutable columns of the auction row.
	SaveAuction(ctx context.Context, a model.Auction) error
	// InsertTransaction records a settlement.
	InsertTransaction(ctx context.Context, t model.Transaction) error
}

// BidQuery selects a page of a listing's bid history.  Page is 1-based.
type BidQuery struct {
	ListingID        string
	Page             int
	Limit            int
	IncludeRetracted bool
	Ascending        bool
}

// Offset converts Page and Limit into a row offset.
func (q BidQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// BidderQuery selects a page of one bidder's bids across every listing,
// newest first.  An empty Statuses matches all statuses.
type BidderQuery struct {
	BidderID string
	Statuses []model.BidStatus
	Page     int
	Limit    int
}

// Offset converts Page and Limit into a row offset.
func (q BidderQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

func (q BidderQuery) matches(b model.Bid) bool {
	if b.BidderID != q.BidderID {
		return false
	}
	if len(q.Statuses) == 0 {
		return true
	}
	for _, st := range q.Statuses {
		if b.Status == st {
			return true
		}
	}
	return false
}

// BidPage is one page of history plus the total number of matching rows.
type BidPage struct {
	Items []model.Bid
	Total int
}

// Store is the durable state the engine depends on.  Implementations must
// serialize WithListing calls per listing id and may run units for
// different listings in parallel.
type Store interface {
	// WithListing locks the auction row and runs fn.  A nil return commits
	// every write made through the LedgerTx, any error discards them all.
	// A missing auction yields ErrNotFound without calling fn.
	WithListing(ctx context.Context, listingID string, fn func(ctx context.Context, tx LedgerTx) error) error
	FindAuction(ctx context.Context, id string) (model.Auction, error)
	FindBid(ctx context.Context, id string) (model.Bid, error)
	ListBids(ctx context.Context, q BidQuery) (BidPage, error)
	ListBidderBids(ctx context.Context, q BidderQuery) (BidPage, error)
	// DueAuctions lists ids of active auctions whose end_time is at or
	// before now, earliest first.
	DueAuctions(ctx context.Context, now time.Time, limit int) ([]string, error)
	Ping(ctx context.Context) error
}

// ProfileReader resolves public bidder profiles.  Unknown ids are absent
// from the result.
type ProfileReader interface {
	Profiles(ctx context.Context, ids []string) (map[string]model.Profile, error)
}
