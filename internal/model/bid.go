package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus enumerates bids.status.
type BidStatus string

const (
	BidActive    BidStatus = "ACTIVE"
	BidWinning   BidStatus = "WINNING"
	BidOutbid    BidStatus = "OUTBID"
	BidWon       BidStatus = "WON"
	BidRetracted BidStatus = "RETRACTED"
)

// ParseBidStatus accepts a status name in any case.
func ParseBidStatus(s string) (BidStatus, bool) {
	st := BidStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case BidActive, BidWinning, BidOutbid, BidWon, BidRetracted:
		return st, true
	}
	return "", false
}

// Final reports whether the status can no longer change.
func (s BidStatus) Final() bool { return s == BidRetracted || s == BidWon }

// Bid mirrors a row of the `bids` ledger.  Amount, PlacedAt and the auto-bid
// ceiling never change after insert; Status and AutoBidActive do.  Seq is
// assigned by the store and orders bids that share a PlacedAt.
type Bid struct {
	ID               string
	Seq              uint64
	ListingID        string
	BidderID         string
	Amount           decimal.Decimal
	PlacedAt         time.Time
	IsAutoBid        bool
	MaxAutoBid       decimal.NullDecimal
	AutoBidActive    bool
	Status           BidStatus
	RetractionReason string
	RetractedAt      *time.Time
}

// IsStandingCeiling reports whether the bid is a live proxy registration.
func (b Bid) IsStandingCeiling() bool {
	return b.IsAutoBid && b.AutoBidActive && b.MaxAutoBid.Valid && b.Status != BidRetracted
}

// PlacedBefore orders bids by PlacedAt then Seq.
func (b Bid) PlacedBefore(o Bid) bool {
	if !b.PlacedAt.Equal(o.PlacedAt) {
		return b.PlacedAt.Before(o.PlacedAt)
	}
	return b.Seq < o.Seq
}
