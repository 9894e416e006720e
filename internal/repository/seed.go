package repository

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// SeedAuction is an auction row as written in a memory seed file.  Listing
// CRUD lives outside the engine, so local runs on the memory store load
// their auctions from such a file.
type SeedAuction struct {
	ID            string              `json:"id"`
	SellerID      string              `json:"seller_id"`
	Currency      string              `json:"currency"`
	StartingPrice decimal.Decimal     `json:"starting_price"`
	MinIncrement  decimal.Decimal     `json:"min_increment"`
	ReservePrice  decimal.NullDecimal `json:"reserve_price"`
	EndTime       *time.Time          `json:"end_time"`
	EndsIn        string              `json:"ends_in"` // duration from load time, used when end_time is absent
	MaxExtensions *int                `json:"max_extensions"`
}

// Seed is the document read by LoadSeed.
type Seed struct {
	Auctions []SeedAuction `json:"auctions"`
	Profiles []SeedProfile `json:"profiles"`
}

// SeedProfile is a bidder profile in a seed file.
type SeedProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	IsDealer    bool   `json:"is_dealer"`
	DealerName  string `json:"dealer_name"`
}

// LoadSeed decodes a seed document into s as active auctions with no bids.
// Auctions without max_extensions get defaultMaxExtensions.
func LoadSeed(s *MemoryStore, r io.Reader, defaultMaxExtensions int, now time.Time) (int, error) {
	var doc Seed
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}
	for _, sa := range doc.Auctions {
		a, err := sa.auction(defaultMaxExtensions, now)
		if err != nil {
			return 0, err
		}
		s.AddAuction(a)
	}
	for _, p := range doc.Profiles {
		s.AddProfile(model.Profile{ID: p.ID, DisplayName: p.DisplayName, IsDealer: p.IsDealer, DealerName: p.DealerName})
	}
	return len(doc.Auctions), nil
}

func (sa SeedAuction) auction(defaultMaxExtensions int, now time.Time) (model.Auction, error) {
	if sa.ID == "" || sa.SellerID == "" {
		return model.Auction{}, fmt.Errorf("seed auction %q: id and seller_id are required", sa.ID)
	}
	if !sa.StartingPrice.IsPositive() {
		return model.Auction{}, fmt.Errorf("seed auction %q: starting_price must be positive", sa.ID)
	}
	var end time.Time
	switch {
	case sa.EndTime != nil:
		end = sa.EndTime.UTC()
	case sa.EndsIn != "":
		d, err := time.ParseDuration(sa.EndsIn)
		if err != nil {
			return model.Auction{}, fmt.Errorf("seed auction %q: ends_in: %w", sa.ID, err)
		}
		end = now.Add(d)
	default:
		return model.Auction{}, fmt.Errorf("seed auction %q: end_time or ends_in is required", sa.ID)
	}
	maxExt := defaultMaxExtensions
	if sa.MaxExtensions != nil {
		maxExt = *sa.MaxExtensions
	}
	currency := sa.Currency
	if currency == "" {
		currency = "EUR"
	}
	return model.Auction{
		ID:            sa.ID,
		SellerID:      sa.SellerID,
		Status:        model.AuctionActive,
		Currency:      currency,
		StartingPrice: sa.StartingPrice,
		CurrentBid:    sa.StartingPrice,
		MinIncrement:  sa.MinIncrement,
		ReservePrice:  sa.ReservePrice,
		EndTime:       end,
		MaxExtensions: maxExt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
