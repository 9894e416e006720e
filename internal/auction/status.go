package auction

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

const endingSoonWithin = 5 * time.Minute

// Status states besides the terminal auction statuses.
const (
	StateActive   = "active"
	StateExtended = "extended"
	StateEnded    = "ended"
)

// Status is a read-only snapshot of an auction.
type Status struct {
	ListingID        string
	State            string
	TimeRemaining    int64 // whole seconds, never negative
	EndTime          time.Time
	Currency         string
	CurrentBid       decimal.Decimal
	NextMinimumBid   decimal.Decimal
	BidCount         int
	ReserveMet       bool
	HasReserve       bool
	ExtensionCount   int
	MaxExtensions    int
	WinningBidderID  string
	DecisionDeadline *time.Time
	EndingSoon       bool
}

// GetAuctionStatus reads the auction without taking the listing lock.
func (e *Engine) GetAuctionStatus(ctx context.Context, listingID string) (Status, error) {
	a, err := e.store.FindAuction(ctx, listingID)
	if errors.Is(err, repository.ErrNotFound) {
		return Status{}, ErrAuctionNotFound
	}
	if err != nil {
		return Status{}, err
	}
	return snapshot(a, e.now()), nil
}

func snapshot(a model.Auction, now time.Time) Status {
	s := Status{
		ListingID:        a.ID,
		State:            string(a.Status),
		EndTime:          a.EndTime,
		Currency:         a.Currency,
		CurrentBid:       a.CurrentBid,
		NextMinimumBid:   MinimumBid(a),
		BidCount:         a.BidCount,
		ReserveMet:       a.ReserveMet,
		HasReserve:       a.HasReserve(),
		ExtensionCount:   a.ExtensionCount,
		MaxExtensions:    a.MaxExtensions,
		WinningBidderID:  a.WinningBidderID,
		DecisionDeadline: a.DecisionDeadline,
	}
	remaining := a.EndTime.Sub(now)
	if a.Status == model.AuctionActive {
		switch {
		case remaining <= 0:
			s.State = StateEnded
		case a.ExtensionCount > 0:
			s.State = StateExtended
		default:
			s.State = StateActive
		}
		if remaining > 0 {
			s.TimeRemaining = int64(remaining / time.Second)
			s.EndingSoon = remaining <= endingSoonWithin
		}
	}
	return s
}

// HistoryQuery selects a page of bid history.  Zero values mean page 1,
// 20 items, newest first, retracted bids hidden.
type HistoryQuery struct {
	Page             int
	Limit            int
	IncludeRetracted bool
	Ascending        bool
}

// HistoryItem is a bid as shown publicly.  The proxy ceiling is never
// part of it.
type HistoryItem struct {
	ID               string
	BidderID         string
	DisplayName      string
	IsDealer         bool
	DealerName       string
	Amount           decimal.Decimal
	PlacedAt         time.Time
	IsAutoBid        bool
	Status           model.BidStatus
	RetractionReason string
}

// History is one page of bid history.
type History struct {
	Items      []HistoryItem
	Page       int
	Limit      int
	Total      int
	TotalPages int
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// ListBidHistory returns a page of the listing's bids ordered by placement
// and decorated with bidder profiles.  Profile lookup failures only drop
// the decoration.
func (e *Engine) ListBidHistory(ctx context.Context, listingID string, q HistoryQuery) (History, error) {
	if _, err := e.store.FindAuction(ctx, listingID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return History{}, ErrAuctionNotFound
		}
		return History{}, err
	}
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit <= 0:
		q.Limit = defaultHistoryLimit
	case q.Limit > maxHistoryLimit:
		q.Limit = maxHistoryLimit
	}

	page, err := e.store.ListBids(ctx, repository.BidQuery{
		ListingID:        listingID,
		Page:             q.Page,
		Limit:            q.Limit,
		IncludeRetracted: q.IncludeRetracted,
		Ascending:        q.Ascending,
	})
	if err != nil {
		return History{}, err
	}

	profiles := e.lookupProfiles(ctx, page.Items)
	items := make([]HistoryItem, len(page.Items))
	for i, b := range page.Items {
		p := profiles[b.BidderID]
		items[i] = HistoryItem{
			ID:               b.ID,
			BidderID:         b.BidderID,
			DisplayName:      p.DisplayName,
			IsDealer:         p.IsDealer,
			DealerName:       p.DealerName,
			Amount:           b.Amount,
			PlacedAt:         b.PlacedAt,
			IsAutoBid:        b.IsAutoBid,
			Status:           b.Status,
			RetractionReason: b.RetractionReason,
		}
	}
	return History{
		Items:      items,
		Page:       q.Page,
		Limit:      q.Limit,
		Total:      page.Total,
		TotalPages: (page.Total + q.Limit - 1) / q.Limit,
	}, nil
}

func (e *Engine) lookupProfiles(ctx context.Context, bids []model.Bid) map[string]model.Profile {
	if e.profiles == nil || len(bids) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(bids))
	ids := make([]string, 0, len(bids))
	for _, b := range bids {
		if !seen[b.BidderID] {
			seen[b.BidderID] = true
			ids = append(ids, b.BidderID)
		}
	}
	profiles, err := e.profiles.Profiles(ctx, ids)
	if err != nil {
		utils.Warn("profile lookup failed", map[string]any{"error": err.Error()})
		return nil
	}
	return profiles
}
