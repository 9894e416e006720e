package auction

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/model"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// challenger returns the strongest standing ceiling not held by the leader:
// highest max_auto_bid, then earliest placement.  -1 when there is none.
func (l *ledger) challenger(leaderID string) int {
	best := -1
	for i, b := range l.bids {
		if b.BidderID == leaderID || !b.IsStandingCeiling() {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		cur := l.bids[best]
		if b.MaxAutoBid.Decimal.GreaterThan(cur.MaxAutoBid.Decimal) ||
			(b.MaxAutoBid.Decimal.Equal(cur.MaxAutoBid.Decimal) && b.PlacedBefore(cur)) {
			best = i
		}
	}
	return best
}

// outranks reports whether ceiling a beats ceiling b: higher maximum, or
// the same maximum registered earlier.
func outranks(a, b model.Bid) bool {
	am, bm := a.MaxAutoBid.Decimal, b.MaxAutoBid.Decimal
	return am.GreaterThan(bm) || (am.Equal(bm) && a.PlacedBefore(b))
}

// resolveProxies lets standing ceilings answer the current leader until
// nobody can outbid them.  Each exchange between two ceilings is settled
// in one jump: the weaker ceiling is spent and the stronger one ends one
// increment above it, so every step retires a proxy bidder and
// MaxProxySteps bounds the number of competing ceilings.  Bids go through
// accept, so the auction row is correct after every step.  It returns the
// bid that leads at the end.
func (l *ledger) resolveProxies(ctx context.Context) (model.Bid, error) {
	for step := 0; step < l.e.cfg.MaxProxySteps; step++ {
		w := l.winning()
		if w < 0 {
			return model.Bid{}, nil
		}
		leader := l.bids[w]
		leading := l.auction.CurrentBid

		c := l.challenger(leader.BidderID)
		if c < 0 {
			return leader, nil
		}
		rival := l.bids[c]
		ceiling := rival.MaxAutoBid.Decimal
		if !ceiling.GreaterThan(leading) {
			return leader, nil
		}

		own := l.ceilingOf(leader.BidderID)
		if own >= 0 && outranks(l.bids[own], rival) {
			mine := l.bids[own]
			// An earlier equal ceiling is never overtaken: the leader
			// goes straight to the shared ceiling and the cascade ends.
			if mine.MaxAutoBid.Decimal.Equal(ceiling) {
				if err := l.placeProxy(ctx, mine, ceiling); err != nil {
					return model.Bid{}, err
				}
				return l.leader(), nil
			}
			if err := l.placeProxy(ctx, rival, ceiling); err != nil {
				return model.Bid{}, err
			}
			answer := decimal.Min(mine.MaxAutoBid.Decimal, ceiling.Add(l.incrementAt(ceiling)))
			if err := l.placeProxy(ctx, mine, answer); err != nil {
				return model.Bid{}, err
			}
			continue
		}

		// The rival overtakes, one increment above whatever the leader
		// could still have offered.
		floor := leading
		if own >= 0 && l.bids[own].MaxAutoBid.Decimal.GreaterThan(floor) {
			floor = l.bids[own].MaxAutoBid.Decimal
		}
		candidate := decimal.Min(ceiling, floor.Add(l.incrementAt(floor)))
		if err := l.placeProxy(ctx, rival, candidate); err != nil {
			return model.Bid{}, err
		}
	}
	utils.Warn("proxy cascade truncated", map[string]any{
		"listing_id": l.auction.ID,
		"steps":      l.e.cfg.MaxProxySteps,
		"current":    l.auction.CurrentBid.String(),
	})
	return l.leader(), nil
}

// placeProxy bids amount on behalf of the registration reg.  The proxy bid
// records the ceiling for audit but is not itself a standing ceiling.
func (l *ledger) placeProxy(ctx context.Context, reg model.Bid, amount decimal.Decimal) error {
	b := l.newBid(reg.BidderID, amount)
	b.IsAutoBid = true
	b.MaxAutoBid = reg.MaxAutoBid
	b.AutoBidActive = false
	return l.accept(ctx, b)
}

// proxyBids returns the proxy bids placed during the unit.
func (l *ledger) proxyBids() []model.Bid {
	var out []model.Bid
	for _, b := range l.placed {
		if b.IsAutoBid && !b.AutoBidActive {
			out = append(out, b)
		}
	}
	return out
}
