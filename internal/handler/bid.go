package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/vehicle-auction-engine/internal/auction"
	"github.com/iliyamo/vehicle-auction-engine/internal/middleware"
	"github.com/iliyamo/vehicle-auction-engine/internal/model"
)

// Engine is the part of *auction.Engine the HTTP layer drives.
type Engine interface {
	PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (auction.PlaceResult, error)
	SetupAutoBid(ctx context.Context, listingID, bidderID string, maxAmount decimal.Decimal, initialBid *decimal.Decimal) (auction.AutoBidResult, error)
	CancelAutoBid(ctx context.Context, listingID, bidderID string) (model.Bid, error)
	RetractBid(ctx context.Context, bidID, requesterID, reason string) (auction.RetractResult, error)
	GetAuctionStatus(ctx context.Context, listingID string) (auction.Status, error)
	ListBidHistory(ctx context.Context, listingID string, q auction.HistoryQuery) (auction.History, error)
	GetBid(ctx context.Context, bidID, viewerID string) (auction.BidDetail, error)
	ListBidderBids(ctx context.Context, bidderID string, q auction.BidderQuery) (auction.BidderBids, error)
	Sweep(ctx context.Context) (auction.SweepResult, error)
}

// AuctionHandler serves the bidding and read endpoints.  Mutating methods
// run behind JWTAuth; the bidder is always the token subject, never a
// value taken from the body.
type AuctionHandler struct {
	Engine Engine
}

// NewAuctionHandler panics on a nil engine.
func NewAuctionHandler(engine Engine) *AuctionHandler {
	if engine == nil {
		panic("nil engine passed to NewAuctionHandler")
	}
	return &AuctionHandler{Engine: engine}
}

// PlaceBid handles POST /v1/auctions/:id/bids with body {"amount": "1250.00"}.
// Amounts may be JSON strings or numbers.  It returns 201 with the new bid
// and the auction state after any proxy bids it provoked.
func (h *AuctionHandler) PlaceBid(c echo.Context) error {
	var body struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Engine.PlaceBid(c.Request().Context(), c.Param("id"), middleware.UserID(c), body.Amount)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, placeView{Bid: toBidView(res.Bid, true), outcomeView: toOutcomeView(res.Outcome)})
}

// SetupAutoBid handles POST /v1/auctions/:id/auto-bid with body
// {"max_amount": "5000", "initial_bid": "1100"}; initial_bid is optional.
func (h *AuctionHandler) SetupAutoBid(c echo.Context) error {
	var body struct {
		MaxAmount  decimal.Decimal  `json:"max_amount"`
		InitialBid *decimal.Decimal `json:"initial_bid"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Engine.SetupAutoBid(c.Request().Context(), c.Param("id"), middleware.UserID(c), body.MaxAmount, body.InitialBid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, autoBidView{AutoBid: toBidView(res.Registration, true), outcomeView: toOutcomeView(res.Outcome)})
}

// CancelAutoBid handles DELETE /v1/auctions/:id/auto-bid.  Bids already
// placed by the proxy stay binding.
func (h *AuctionHandler) CancelAutoBid(c echo.Context) error {
	b, err := h.Engine.CancelAutoBid(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"auto_bid": toBidView(b, true)})
}

// RetractBid handles POST /v1/bids/:id/retract with body {"reason": "..."}.
func (h *AuctionHandler) RetractBid(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := h.Engine.RetractBid(c.Request().Context(), c.Param("id"), middleware.UserID(c), body.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, retractView{
		Bid:             toBidView(res.Bid, true),
		CurrentBid:      money(res.CurrentBid),
		BidCount:        res.BidCount,
		WinningBidderID: res.WinningBidderID,
	})
}

// Status handles GET /v1/auctions/:id/status.  Public.
func (h *AuctionHandler) Status(c echo.Context) error {
	s, err := h.Engine.GetAuctionStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toStatusView(s))
}

// History handles GET /v1/auctions/:id/bids.  Query parameters:
// page (default 1), limit (default 20, max 100), include_retracted
// (bool) and order ("desc" default, or "asc").
func (h *AuctionHandler) History(c echo.Context) error {
	var q auction.HistoryQuery
	var err error
	if v := c.QueryParam("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return badRequest(c, "invalid page")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return badRequest(c, "invalid limit")
		}
	}
	if v := c.QueryParam("include_retracted"); v != "" {
		if q.IncludeRetracted, err = strconv.ParseBool(v); err != nil {
			return badRequest(c, "invalid include_retracted")
		}
	}
	switch strings.ToLower(c.QueryParam("order")) {
	case "", "desc":
	case "asc":
		q.Ascending = true
	default:
		return badRequest(c, "order must be asc or desc")
	}

	hist, err := h.Engine.ListBidHistory(c.Request().Context(), c.Param("id"), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toHistoryView(hist))
}

// GetBid handles GET /v1/bids/:id.  The proxy ceiling is included only for
// the bidder and the seller.
func (h *AuctionHandler) GetBid(c echo.Context) error {
	d, err := h.Engine.GetBid(c.Request().Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBidView(d.Bid, d.Private))
}

// MyBids handles GET /v1/bids/mine.  Query parameters: page, limit and
// status (comma separated, any case).
func (h *AuctionHandler) MyBids(c echo.Context) error {
	var q auction.BidderQuery
	var err error
	if v := c.QueryParam("page"); v != "" {
		if q.Page, err = strconv.Atoi(v); err != nil {
			return badRequest(c, "invalid page")
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if q.Limit, err = strconv.Atoi(v); err != nil {
			return badRequest(c, "invalid limit")
		}
	}
	if v := c.QueryParam("status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			st, ok := model.ParseBidStatus(part)
			if !ok {
				return badRequest(c, "invalid status "+strings.TrimSpace(part))
			}
			q.Statuses = append(q.Statuses, st)
		}
	}

	res, err := h.Engine.ListBidderBids(c.Request().Context(), middleware.UserID(c), q)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, toBidderBidsView(res))
}
