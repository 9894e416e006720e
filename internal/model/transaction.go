package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionPending is the only status the engine writes; payment capture
// moves it forward elsewhere.
const TransactionPending = "pending"

// Transaction mirrors `auction_transactions`: the sale record created when
// an auction settles successfully.
type Transaction struct {
	ID        string
	ListingID string
	BidID     string
	SellerID  string
	BuyerID   string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	CreatedAt time.Time
}
