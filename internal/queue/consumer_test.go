package queue

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var at = time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)

func mustBody(t *testing.T, typ string, payload any) []byte {
	t.Helper()
	ev, err := NewEvent(typ, "listing-1", at, payload)
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	return body
}

func TestHandleMessage(t *testing.T) {
	amount := decimal.RequireFromString("4200.50")
	deadline := at.Add(48 * time.Hour)
	cases := []struct {
		name string
		body []byte
		want string
	}{
		{
			name: "outbid",
			body: mustBody(t, TypeBidOutbid, BidOutbid{BidID: "b1", BidderID: "u1", Amount: decimal.NewFromInt(1100), NewAmount: decimal.NewFromInt(1200), NewLeaderID: "u2"}),
			want: "[2026-05-02T18:30:00Z] Outbid | to=u1 | your_bid=1100 | new_bid=1200 | listing_id=listing-1\n",
		},
		{
			name: "won",
			body: mustBody(t, TypeAuctionSettled, AuctionSettled{Status: "ended_success", SellerID: "s", WinnerID: "u2", Amount: &amount, TransactionID: "tx1"}),
			want: "[2026-05-02T18:30:00Z] Auction won | to=u2,s | amount=4200.5 | transaction_id=tx1 | listing_id=listing-1\n",
		},
		{
			name: "reserve not met",
			body: mustBody(t, TypeAuctionSettled, AuctionSettled{Status: "ended_reserve_not_met", SellerID: "s", DecisionDeadline: &deadline}),
			want: "[2026-05-02T18:30:00Z] Reserve not met | to=s | decide_by=2026-05-04T18:30:00Z | listing_id=listing-1\n",
		},
		{
			name: "unsold",
			body: mustBody(t, TypeAuctionSettled, AuctionSettled{Status: "ended_unsold", SellerID: "s"}),
			want: "[2026-05-02T18:30:00Z] Auction ended ended_unsold | to=s | listing_id=listing-1\n",
		},
		{
			name: "placed is silent",
			body: mustBody(t, TypeBidPlaced, BidPlaced{BidID: "b"}),
			want: "",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, handleMessage(tc.body, &buf))
			require.Equal(t, tc.want, buf.String())
		})
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, handleMessage([]byte("{"), &buf))
	require.Error(t, handleMessage(mustBody(t, "bid.unknown", struct{}{}), &buf))
	require.Empty(t, buf.String())
}
