package auction

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Validation errors are client-correctable.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrBidTooLow               = errors.New("bid too low")
	ErrSelfBid                 = errors.New("seller cannot bid on own auction")
	ErrDuplicateAutoBid        = errors.New("auto-bid already active")
	ErrRetractionWindowExpired = errors.New("retraction window expired")
	ErrInvalidReason           = errors.New("retraction reason must be 10 to 500 characters")
	ErrForbidden               = errors.New("forbidden")
)

// State errors mean the caller's view of the auction is stale.
var (
	ErrAuctionNotActive = errors.New("auction not active")
	// ErrAuctionNotFound is a kind of ErrAuctionNotActive.
	ErrAuctionNotFound = fmt.Errorf("%w: not found", ErrAuctionNotActive)
	ErrAuctionEnded    = errors.New("auction ended")
	ErrAlreadyFinal    = errors.New("bid already final")
	ErrBidNotFound     = errors.New("bid not found")
	ErrAutoBidNotFound = errors.New("no active auto-bid")
)

// ErrConflict is returned once internal retries on lock contention are
// exhausted.
var ErrConflict = errors.New("conflict, try again")

// BidTooLowError reports the smallest amount that would have been accepted.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: minimum is %s", e.Minimum.StringFixed(2))
}

func (e *BidTooLowError) Is(target error) bool { return target == ErrBidTooLow }

func bidTooLow(minimum decimal.Decimal) error { return &BidTooLowError{Minimum: minimum} }
