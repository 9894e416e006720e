package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/auction"
	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// Response shapes.  Money is always a fixed two-decimal string.

type bidView struct {
	ID         string     `json:"id"`
	ListingID  string     `json:"listing_id"`
	BidderID   string     `json:"bidder_id"`
	Amount     string     `json:"amount"`
	PlacedAt   time.Time  `json:"placed_at"`
	IsAutoBid  bool       `json:"is_auto_bid"`
	Status     string     `json:"status"`
	MaxAutoBid *string    `json:"max_auto_bid,omitempty"`
	AutoActive *bool      `json:"auto_bid_active,omitempty"`
	Retracted  *time.Time `json:"retracted_at,omitempty"`
}

// toBidView renders b; the ceiling is only shown when owner is true.
func toBidView(b model.Bid, owner bool) bidView {
	v := bidView{
		ID:        b.ID,
		ListingID: b.ListingID,
		BidderID:  b.BidderID,
		Amount:    money(b.Amount),
		PlacedAt:  b.PlacedAt,
		IsAutoBid: b.IsAutoBid,
		Status:    string(b.Status),
		Retracted: b.RetractedAt,
	}
	if owner && b.MaxAutoBid.Valid {
		m := money(b.MaxAutoBid.Decimal)
		active := b.AutoBidActive
		v.MaxAutoBid, v.AutoActive = &m, &active
	}
	return v
}

type outcomeView struct {
	CurrentBid      string    `json:"current_bid"`
	BidCount        int       `json:"bid_count"`
	Extended        bool      `json:"extended"`
	EndTime         time.Time `json:"end_time"`
	WinningBidderID string    `json:"winning_bidder_id,omitempty"`
	NextMinimumBid  string    `json:"next_minimum_bid"`
	ProxyBids       []bidView `json:"proxy_bids"`
}

func toOutcomeView(o auction.Outcome) outcomeView {
	proxies := make([]bidView, 0, len(o.ProxyBids))
	for _, b := range o.ProxyBids {
		proxies = append(proxies, toBidView(b, false))
	}
	return outcomeView{
		CurrentBid:      money(o.CurrentBid),
		BidCount:        o.BidCount,
		Extended:        o.Extended,
		EndTime:         o.EndTime,
		WinningBidderID: o.WinningBidderID,
		NextMinimumBid:  money(o.NextMinimumBid),
		ProxyBids:       proxies,
	}
}

type placeView struct {
	Bid bidView `json:"bid"`
	outcomeView
}

type autoBidView struct {
	AutoBid bidView `json:"auto_bid"`
	outcomeView
}

type retractView struct {
	Bid             bidView `json:"bid"`
	CurrentBid      string  `json:"current_bid"`
	BidCount        int     `json:"bid_count"`
	WinningBidderID string  `json:"winning_bidder_id,omitempty"`
}

type statusView struct {
	ListingID        string     `json:"listing_id"`
	State            string     `json:"state"`
	TimeRemaining    int64      `json:"time_remaining"`
	EndTime          time.Time  `json:"end_time"`
	EndingSoon       bool       `json:"ending_soon"`
	Currency         string     `json:"currency"`
	CurrentBid       string     `json:"current_bid"`
	NextMinimumBid   string     `json:"next_minimum_bid"`
	BidCount         int        `json:"bid_count"`
	ReserveMet       bool       `json:"reserve_met"`
	HasReserve       bool       `json:"has_reserve"`
	ExtensionCount   int        `json:"extension_count"`
	MaxExtensions    int        `json:"max_extensions"`
	WinningBidderID  string     `json:"winning_bidder_id,omitempty"`
	DecisionDeadline *time.Time `json:"decision_deadline,omitempty"`
}

func toStatusView(s auction.Status) statusView {
	return statusView{
		ListingID:        s.ListingID,
		State:            s.State,
		TimeRemaining:    s.TimeRemaining,
		EndTime:          s.EndTime,
		EndingSoon:       s.EndingSoon,
		Currency:         s.Currency,
		CurrentBid:       money(s.CurrentBid),
		NextMinimumBid:   money(s.NextMinimumBid),
		BidCount:         s.BidCount,
		ReserveMet:       s.ReserveMet,
		HasReserve:       s.HasReserve,
		ExtensionCount:   s.ExtensionCount,
		MaxExtensions:    s.MaxExtensions,
		WinningBidderID:  s.WinningBidderID,
		DecisionDeadline: s.DecisionDeadline,
	}
}

type historyItemView struct {
	ID               string    `json:"id"`
	BidderID         string    `json:"bidder_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	IsDealer         bool      `json:"is_dealer"`
	DealerName       string    `json:"dealer_name,omitempty"`
	Amount           string    `json:"amount"`
	PlacedAt         time.Time `json:"placed_at"`
	IsAutoBid        bool      `json:"is_auto_bid"`
	Status           string    `json:"status"`
	RetractionReason string    `json:"retraction_reason,omitempty"`
}

type historyView struct {
	Items      []historyItemView `json:"items"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

func toHistoryView(h auction.History) historyView {
	items := make([]historyItemView, 0, len(h.Items))
	for _, it := range h.Items {
		items = append(items, historyItemView{
			ID:               it.ID,
			BidderID:         it.BidderID,
			DisplayName:      it.DisplayName,
			IsDealer:         it.IsDealer,
			DealerName:       it.DealerName,
			Amount:           money(it.Amount),
			PlacedAt:         it.PlacedAt,
			IsAutoBid:        it.IsAutoBid,
			Status:           string(it.Status),
			RetractionReason: it.RetractionReason,
		})
	}
	return historyView{Items: items, Page: h.Page, Limit: h.Limit, Total: h.Total, TotalPages: h.TotalPages}
}

type bidderBidsView struct {
	Items      []bidView `json:"items"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
}

// toBidderBidsView renders the requester's own bids, ceilings included.
func toBidderBidsView(b auction.BidderBids) bidderBidsView {
	items := make([]bidView, 0, len(b.Items))
	for _, it := range b.Items {
		items = append(items, toBidView(it, true))
	}
	return bidderBidsView{Items: items, Page: b.Page, Limit: b.Limit, Total: b.Total, TotalPages: b.TotalPages}
}

type settlementView struct {
	ListingID        string     `json:"listing_id"`
	Status           string     `json:"status"`
	WinnerID         string     `json:"winner_id,omitempty"`
	WinningBidID     string     `json:"winning_bid_id,omitempty"`
	Amount           *string    `json:"amount,omitempty"`
	TransactionID    string     `json:"transaction_id,omitempty"`
	DecisionDeadline *time.Time `json:"decision_deadline,omitempty"`
}

type sweepView struct {
	Due            int              `json:"due"`
	Settled        []settlementView `json:"settled"`
	Skipped        int              `json:"skipped"`
	Failed         []failureView    `json:"failed"`
	NotifyFailures int              `json:"notify_failures"`
}

type failureView struct {
	ListingID string `json:"listing_id"`
	Error     string `json:"error"`
}

func toSweepView(r auction.SweepResult) sweepView {
	settled := make([]settlementView, 0, len(r.Settled))
	for _, s := range r.Settled {
		v := settlementView{
			ListingID:        s.ListingID,
			Status:           string(s.Status),
			WinnerID:         s.WinnerID,
			WinningBidID:     s.WinningBidID,
			TransactionID:    s.TransactionID,
			DecisionDeadline: s.DecisionDeadline,
		}
		if s.Amount != nil {
			m := money(*s.Amount)
			v.Amount = &m
		}
		settled = append(settled, v)
	}
	failed := make([]failureView, 0, len(r.Failed))
	for _, f := range r.Failed {
		failed = append(failed, failureView{ListingID: f.ListingID, Error: f.Error})
	}
	return sweepView{Due: r.Due, Settled: settled, Skipped: r.Skipped, Failed: failed, NotifyFailures: r.NotifyFailures}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
