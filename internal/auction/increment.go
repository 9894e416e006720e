package auction

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// MaxBidAmount caps any single bid or auto-bid ceiling.
var MaxBidAmount = decimal.NewFromInt(10_000_000)

type tier struct {
	below decimal.Decimal
	step  decimal.Decimal
}

// Used when an auction has no explicit min_increment.
var incrementTiers = []tier{
	{decimal.NewFromInt(1000), decimal.NewFromInt(50)},
	{decimal.NewFromInt(5000), decimal.NewFromInt(100)},
	{decimal.NewFromInt(10000), decimal.NewFromInt(250)},
}

var topIncrement = decimal.NewFromInt(500)

// TieredIncrement returns the default bid step for a current amount.
func TieredIncrement(current decimal.Decimal) decimal.Decimal {
	for _, t := range incrementTiers {
		if current.LessThan(t.below) {
			return t.step
		}
	}
	return topIncrement
}

// Increment is the step required on top of the auction's current bid.
func Increment(a model.Auction) decimal.Decimal { return IncrementAt(a, a.CurrentBid) }

// IncrementAt is the step the auction requires on top of amount.
func IncrementAt(a model.Auction, amount decimal.Decimal) decimal.Decimal {
	if a.MinIncrement.IsPositive() {
		return a.MinIncrement
	}
	return TieredIncrement(amount)
}

// MinimumBid is the lowest amount the auction accepts next.
func MinimumBid(a model.Auction) decimal.Decimal {
	return a.CurrentBid.Add(Increment(a))
}

// validateAmount rejects non-positive amounts, fractions of a cent and
// amounts above MaxBidAmount.
func validateAmount(v decimal.Decimal) error {
	if !v.IsPositive() || !v.Equal(v.Truncate(2)) || v.GreaterThan(MaxBidAmount) {
		return ErrInvalidAmount
	}
	return nil
}
