package auction

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/repository"
)

// seedLedger writes bids straight into the store and derives the auction
// row from them, bypassing the engine.
func (f *fixture) seedLedger(t *testing.T, bids ...model.Bid) {
	t.Helper()
	err := f.store.WithListing(context.Background(), listing, func(ctx context.Context, tx repository.LedgerTx) error {
		a := tx.Auction()
		for i := range bids {
			b := bids[i]
			b.ListingID = listing
			if err := tx.InsertBid(ctx, &b); err != nil {
				return err
			}
			a.BidCount++
			if b.Status == model.BidWinning {
				a.CurrentBid = b.Amount
				a.WinningBidderID = b.BidderID
			}
		}
		return tx.SaveAuction(ctx, a)
	})
	require.NoError(t, err)
}

func TestResolveProxiesRaisesCeilingOneStep(t *testing.T) {
	// X holds a 1500 ceiling; Y has just bid 1100 manually.
	f := setup(t)
	f.seedLedger(t,
		model.Bid{ID: "x-reg", BidderID: "X", Amount: d("1000"), PlacedAt: t0.Add(-time.Minute), IsAutoBid: true, AutoBidActive: true, MaxAutoBid: decimal.NewNullDecimal(d("1500")), Status: model.BidActive},
		model.Bid{ID: "y-1100", BidderID: "Y", Amount: d("1100"), PlacedAt: t0, Status: model.BidWinning},
	)

	var final model.Bid
	_, err := f.engine.atomic(context.Background(), listing, func(ctx context.Context, l *ledger) error {
		var err error
		final, err = l.resolveProxies(ctx)
		return err
	})
	require.NoError(t, err)

	require.Equal(t, "X", final.BidderID)
	require.True(t, final.Amount.Equal(d("1200")))
	require.True(t, final.IsAutoBid)
	require.False(t, final.AutoBidActive)
	require.True(t, final.MaxAutoBid.Decimal.Equal(d("1500")))

	a := f.auction(t)
	require.True(t, a.CurrentBid.Equal(d("1200")))
	require.Equal(t, "X", a.WinningBidderID)
	require.Equal(t, model.BidOutbid, f.bid(t, "y-1100").Status)
	f.requireInvariants(t, listing)
}

func TestProxyAnswersManualBid(t *testing.T) {
	f := setup(t)
	reg := f.autoBid(t, "X", "1500")
	require.True(t, reg.CurrentBid.Equal(d("1100")))

	res := f.place(t, "Y", "1200")
	require.Equal(t, "X", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("1300")))
	require.Len(t, res.ProxyBids, 1)
	require.True(t, res.ProxyBids[0].Amount.Equal(d("1300")))
	require.Equal(t, model.BidOutbid, f.bid(t, res.Bid.ID).Status)
	require.Equal(t, model.BidOutbid, res.Bid.Status, "result carries the bid's final status")
	f.requireInvariants(t, listing)
}

func TestProxyStopsAtCeiling(t *testing.T) {
	f := setup(t)
	f.autoBid(t, "X", "1250")

	res := f.place(t, "Y", "1200")
	require.Equal(t, "X", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("1250")), "capped at the ceiling")

	res = f.place(t, "Y", "1350")
	require.Equal(t, "Y", res.WinningBidderID)
	require.Empty(t, res.ProxyBids)
	f.requireInvariants(t, listing)
}

func TestProxyBattle(t *testing.T) {
	f := setup(t)
	f.autoBid(t, "X", "1500")
	res := f.autoBid(t, "Y", "2000")

	// X spends its ceiling and Y answers one increment above it.
	require.Equal(t, "Y", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("1600")))
	require.Equal(t, []string{"X:1500", "Y:1600"}, proxyAmounts(res.ProxyBids))
	require.Equal(t, 4, res.BidCount)
	f.requireInvariants(t, listing)
}

func TestEqualCeilingEarlierRegistrationWins(t *testing.T) {
	cases := []struct {
		name string
		gap  time.Duration
	}{
		{"earlier timestamp", time.Second},
		{"same timestamp, earlier seq", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			f.autoBid(t, "X", "1500")
			f.clock.Advance(tc.gap)

			res := f.autoBid(t, "Y", "1500")
			require.Equal(t, "X", res.WinningBidderID)
			require.True(t, res.CurrentBid.Equal(d("1500")))
			require.Equal(t, model.BidOutbid, res.Registration.Status)

			// Y's ceiling is exhausted; a manual bid from a third party
			// is answered by neither.
			after := f.place(t, "Z", "1600")
			require.Equal(t, "Z", after.WinningBidderID)
			require.Empty(t, after.ProxyBids)
			f.requireInvariants(t, listing)
		})
	}
}

func TestProxyCascadeExtendsOnce(t *testing.T) {
	f := setup(t, func(a *model.Auction) { a.EndTime = t0.Add(30 * time.Minute) })
	// wide enough that the proxy answer would qualify for a second extension
	f.engine.cfg.ExtensionWindow = 10 * time.Minute
	f.autoBid(t, "X", "3000")
	f.autoBid(t, "Y", "5000")
	require.Zero(t, f.auction(t).ExtensionCount)

	f.clock.Advance(28 * time.Minute)
	res := f.place(t, "Z", "3200")
	require.True(t, res.Extended)
	require.NotEmpty(t, res.ProxyBids)
	a := f.auction(t)
	require.Equal(t, 1, a.ExtensionCount)
	require.Equal(t, t0.Add(35*time.Minute), a.EndTime)
	f.requireInvariants(t, listing)
}

func proxyAmounts(bids []model.Bid) []string {
	out := make([]string, len(bids))
	for i, b := range bids {
		out[i] = b.BidderID + ":" + b.Amount.String()
	}
	return out
}

func TestProxyBattleWithTieredIncrements(t *testing.T) {
	f := setup(t, func(a *model.Auction) { a.MinIncrement = decimal.Zero })
	f.autoBid(t, "X", "120000")

	res := f.autoBid(t, "Y", "100000")
	// Y's registration leads briefly; X overtakes one 500 step above Y's ceiling.
	require.Equal(t, "X", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("100500")), "current %s", res.CurrentBid)
	require.Equal(t, []string{"X:100500"}, proxyAmounts(res.ProxyBids))
	require.Equal(t, 3, res.BidCount)
	require.Equal(t, model.BidOutbid, res.Registration.Status)

	// The weaker ceiling is exhausted and does not answer again.
	after := f.place(t, "Z", "101000")
	require.Equal(t, "X", after.WinningBidderID)
	require.True(t, after.CurrentBid.Equal(d("101500")))
	require.Equal(t, []string{"X:101500"}, proxyAmounts(after.ProxyBids))
	f.requireInvariants(t, listing)
}

func TestProxyCascadeRetiresOneBidderPerStep(t *testing.T) {
	f := setup(t)
	// two steps are enough for any single request below
	f.engine.cfg.MaxProxySteps = 2
	f.autoBid(t, "A", "2000")
	f.autoBid(t, "B", "3000")

	res := f.autoBid(t, "C", "2500")
	require.Equal(t, "B", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("2600")))

	res = f.autoBid(t, "D", "5000")
	require.Equal(t, "D", res.WinningBidderID)
	require.True(t, res.CurrentBid.Equal(d("3100")))
	require.Equal(t, []string{"B:3000", "D:3100"}, proxyAmounts(res.ProxyBids))
	f.requireInvariants(t, listing)

	status, err := f.engine.GetAuctionStatus(context.Background(), listing)
	require.NoError(t, err)
	require.True(t, status.NextMinimumBid.Equal(d("3200")))
}
