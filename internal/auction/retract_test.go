package auction

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/queue"
)

const why = "entered the wrong amount"

func TestRetractWinningBidPromotesNext(t *testing.T) {
	f := setup(t)
	first := f.place(t, "u1", "1100")
	second := f.place(t, "u2", "1200")

	f.clock.Advance(4 * time.Minute)
	res, err := f.engine.RetractBid(context.Background(), second.Bid.ID, "u2", why)
	require.NoError(t, err)
	require.True(t, res.CurrentBid.Equal(d("1100")))
	require.Equal(t, "u1", res.WinningBidderID)
	require.Equal(t, 1, res.BidCount)
	require.Equal(t, model.BidRetracted, res.Bid.Status)
	require.Equal(t, why, res.Bid.RetractionReason)
	require.NotNil(t, res.Bid.RetractedAt)
	require.Equal(t, model.BidWinning, f.bid(t, first.Bid.ID).Status)
	require.Contains(t, f.events.types(), queue.TypeBidRetracted)
	f.requireInvariants(t, listing)

	f.clock.Advance(2 * time.Minute)
	_, err = f.engine.RetractBid(context.Background(), first.Bid.ID, "u1", why)
	require.ErrorIs(t, err, ErrRetractionWindowExpired)
}

func TestRetractOutbidBidKeepsLeader(t *testing.T) {
	f := setup(t)
	first := f.place(t, "u1", "1100")
	f.place(t, "u2", "1200")

	res, err := f.engine.RetractBid(context.Background(), first.Bid.ID, "u1", why)
	require.NoError(t, err)
	require.True(t, res.CurrentBid.Equal(d("1200")))
	require.Equal(t, "u2", res.WinningBidderID)
	require.Equal(t, 1, res.BidCount)
	f.requireInvariants(t, listing)
}

func TestRetractLastBidResetsAuction(t *testing.T) {
	f := setup(t, func(a *model.Auction) { a.ReservePrice = nullDec("1000") })
	only := f.place(t, "u1", "1100")
	require.True(t, f.auction(t).ReserveMet)

	res, err := f.engine.RetractBid(context.Background(), only.Bid.ID, "u1", why)
	require.NoError(t, err)
	require.True(t, res.CurrentBid.Equal(d("1000")))
	require.Empty(t, res.WinningBidderID)
	require.Zero(t, res.BidCount)

	a := f.auction(t)
	require.False(t, a.ReserveMet)
	require.Empty(t, a.WinningBidderID)
	f.requireInvariants(t, listing)
}

func TestRetractRecomputesReserve(t *testing.T) {
	f := setup(t, func(a *model.Auction) { a.ReservePrice = nullDec("1150") })
	f.place(t, "u1", "1100")
	top := f.place(t, "u2", "1200")
	require.True(t, f.auction(t).ReserveMet)

	_, err := f.engine.RetractBid(context.Background(), top.Bid.ID, "u2", why)
	require.NoError(t, err)
	require.False(t, f.auction(t).ReserveMet)
}

func TestRetractRegistrationStopsProxy(t *testing.T) {
	f := setup(t)
	reg := f.autoBid(t, "X", "1500").Registration

	_, err := f.engine.RetractBid(context.Background(), reg.ID, "X", "changed my mind")
	require.NoError(t, err)
	require.False(t, f.bid(t, reg.ID).AutoBidActive)

	res := f.place(t, "Y", "1100")
	require.Equal(t, "Y", res.WinningBidderID)
	require.Empty(t, res.ProxyBids)
	f.requireInvariants(t, listing)
}

func TestRetractRejections(t *testing.T) {
	f := setup(t, func(a *model.Auction) { a.EndTime = t0.Add(3 * time.Minute) })
	b := f.place(t, "u1", "1100").Bid // extends the end to t0+8m

	_, err := f.engine.RetractBid(context.Background(), "missing", "u1", why)
	require.ErrorIs(t, err, ErrBidNotFound)

	_, err = f.engine.RetractBid(context.Background(), b.ID, "u2", why)
	require.ErrorIs(t, err, ErrForbidden)

	f.clock.Advance(10 * time.Minute)
	_, err = f.engine.RetractBid(context.Background(), b.ID, "u2", why)
	require.ErrorIs(t, err, ErrForbidden, "ownership is checked before the window")
	_, err = f.engine.RetractBid(context.Background(), b.ID, "u1", why)
	require.ErrorIs(t, err, ErrRetractionWindowExpired)
}

func TestRetractAfterEndAndTwice(t *testing.T) {
	t.Run("auction ended", func(t *testing.T) {
		f := setup(t, func(a *model.Auction) {
			a.EndTime = t0.Add(time.Minute)
			a.MaxExtensions = 0
		})
		b := f.place(t, "u1", "1100").Bid
		f.clock.Advance(2 * time.Minute)

		_, err := f.engine.RetractBid(context.Background(), b.ID, "u1", why)
		require.ErrorIs(t, err, ErrAuctionEnded)
	})
	t.Run("already retracted", func(t *testing.T) {
		f := setup(t)
		b := f.place(t, "u1", "1100").Bid
		_, err := f.engine.RetractBid(context.Background(), b.ID, "u1", why)
		require.NoError(t, err)

		_, err = f.engine.RetractBid(context.Background(), b.ID, "u1", why)
		require.ErrorIs(t, err, ErrAlreadyFinal)
		require.Zero(t, f.auction(t).BidCount)
		f.requireInvariants(t, listing)
	})
}

func TestRetractReasonLength(t *testing.T) {
	tests := []struct {
		name   string
		reason string
		ok     bool
	}{
		{"empty", "", false},
		{"blank", "          ", false},
		{"nine runes", "123456789", false},
		{"ten runes", "1234567890", true},
		{"ten runes after trim", "  1234567890  ", true},
		{"500 multi-byte runes", strings.Repeat("é", 500), true},
		{"501 runes", strings.Repeat("a", 501), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			b := f.place(t, "u1", "1100")
			_, err := f.engine.RetractBid(context.Background(), b.Bid.ID, "u1", tt.reason)
			if !tt.ok {
				require.ErrorIs(t, err, ErrInvalidReason)
				require.Equal(t, model.BidWinning, f.bid(t, b.Bid.ID).Status)
				return
			}
			require.NoError(t, err)
			require.Equal(t, strings.TrimSpace(tt.reason), f.bid(t, b.Bid.ID).RetractionReason)
		})
	}
}
