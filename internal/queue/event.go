// Package queue defines the auction events exchanged over the message broker
// and the consumer that turns them into notification log lines.
package queue

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// QueueName is the durable queue carrying every auction event.
const QueueName = "auction.events"

// Event types.
const (
	TypeBidPlaced       = "bid.placed"
	TypeBidOutbid       = "bid.outbid"
	TypeAuctionExtended = "auction.extended"
	TypeBidRetracted    = "bid.retracted"
	TypeAuctionSettled  = "auction.settled"
)

// Event is the envelope published after a listing unit commits.  Data holds
// one of the payload structs below, selected by Type.
type Event struct {
	Type       string          `json:"type"`
	ListingID  string          `json:"listing_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent marshals payload into an envelope.
func NewEvent(eventType, listingID string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, ListingID: listingID, OccurredAt: at.UTC(), Data: data}, nil
}

// BidPlaced is emitted for every accepted bid, proxy bids included.
type BidPlaced struct {
	BidID      string          `json:"bid_id"`
	BidderID   string          `json:"bidder_id"`
	Amount     decimal.Decimal `json:"amount"`
	IsAutoBid  bool            `json:"is_auto_bid"`
	CurrentBid decimal.Decimal `json:"current_bid"`
	BidCount   int             `json:"bid_count"`
	EndTime    time.Time       `json:"end_time"`
}

// BidOutbid tells the previous leader that they lost the lead.
type BidOutbid struct {
	BidID       string          `json:"bid_id"`
	BidderID    string          `json:"bidder_id"`
	Amount      decimal.Decimal `json:"amount"`
	NewAmount   decimal.Decimal `json:"new_amount"`
	NewLeaderID string          `json:"new_leader_id"`
}

// AuctionExtended is emitted when a late bid pushed end_time out.
type AuctionExtended struct {
	EndTime        time.Time `json:"end_time"`
	ExtensionCount int       `json:"extension_count"`
	MaxExtensions  int       `json:"max_extensions"`
}

// BidRetracted reports a withdrawn bid and the resulting leader.
type BidRetracted struct {
	BidID           string          `json:"bid_id"`
	BidderID        string          `json:"bidder_id"`
	Reason          string          `json:"reason,omitempty"`
	CurrentBid      decimal.Decimal `json:"current_bid"`
	WinningBidderID string          `json:"winning_bidder_id,omitempty"`
}

// AuctionSettled carries the terminal state reached by the sweep.
type AuctionSettled struct {
	Status           string           `json:"status"`
	SellerID         string           `json:"seller_id"`
	WinnerID         string           `json:"winner_id,omitempty"`
	WinningBidID     string           `json:"winning_bid_id,omitempty"`
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	TransactionID    string           `json:"transaction_id,omitempty"`
	DecisionDeadline *time.Time       `json:"decision_deadline,omitempty"`
}
