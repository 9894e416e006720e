package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus enumerates auctions.status.
type AuctionStatus string

const (
	AuctionDraft              AuctionStatus = "draft"
	AuctionActive             AuctionStatus = "active"
	AuctionEndedSuccess       AuctionStatus = "ended_success"
	AuctionEndedUnsold        AuctionStatus = "ended_unsold"
	AuctionEndedReserveNotMet AuctionStatus = "ended_reserve_not_met"
	AuctionCancelled          AuctionStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s AuctionStatus) Terminal() bool {
	switch s {
	case AuctionEndedSuccess, AuctionEndedUnsold, AuctionEndedReserveNotMet, AuctionCancelled:
		return true
	}
	return false
}

// Auction mirrors a row of the `auctions` table.  One row exists per
// auctioned listing and the primary key is the listing id.  The row is a
// cache derived from the bid ledger: CurrentBid, BidCount, ReserveMet and
// WinningBidderID must be rewritten in the same transaction as any ledger
// change.
//
// Fields:
//  ID                 – listing id (UUID).
//  SellerID           – owner of the listing; may not bid.
//  StartingPrice      – CurrentBid when no bid is winning.
//  MinIncrement       – explicit increment; zero means the tiered table applies.
//  ReservePrice       – optional reserve; Valid=false means no reserve.
//  WinningBidderID    – bidder of the WINNING bid, empty when none.
//  DecisionDeadline   – set when the auction ends below reserve.
//  SuspiciousActivity – raised when one bidder bids unusually often.
type Auction struct {
	ID                 string
	SellerID           string
	Status             AuctionStatus
	Currency           string
	StartingPrice      decimal.Decimal
	CurrentBid         decimal.Decimal
	BidCount           int
	MinIncrement       decimal.Decimal
	ReservePrice       decimal.NullDecimal
	ReserveMet         bool
	WinningBidderID    string
	EndTime            time.Time
	ExtensionCount     int
	MaxExtensions      int
	DecisionDeadline   *time.Time
	EndedAt            *time.Time
	SuspiciousActivity bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasReserve reports whether the seller configured a reserve price.
func (a Auction) HasReserve() bool { return a.ReservePrice.Valid }
