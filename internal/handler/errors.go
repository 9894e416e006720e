package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-auction-engine/internal/auction"
	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// errorCase maps an engine error to its HTTP status and machine-readable code.
// Order matters: ErrAuctionNotFound is also an ErrAuctionNotActive.
var errorCases = []struct {
	err    error
	status int
	code   string
}{
	{auction.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{auction.ErrBidTooLow, http.StatusBadRequest, "bid_too_low"},
	{auction.ErrRetractionWindowExpired, http.StatusBadRequest, "retraction_window_expired"},
	{auction.ErrInvalidReason, http.StatusBadRequest, "invalid_reason"},
	{auction.ErrSelfBid, http.StatusForbidden, "self_bid_forbidden"},
	{auction.ErrForbidden, http.StatusForbidden, "forbidden"},
	{auction.ErrDuplicateAutoBid, http.StatusConflict, "duplicate_auto_bid"},
	{auction.ErrAuctionNotFound, http.StatusNotFound, "auction_not_found"},
	{auction.ErrBidNotFound, http.StatusNotFound, "bid_not_found"},
	{auction.ErrAutoBidNotFound, http.StatusNotFound, "auto_bid_not_found"},
	{auction.ErrAuctionNotActive, http.StatusConflict, "auction_not_active"},
	{auction.ErrAuctionEnded, http.StatusConflict, "auction_ended"},
	{auction.ErrAlreadyFinal, http.StatusConflict, "already_final"},
	{auction.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError renders err with the shared error body.  Unknown errors are
// logged and reported as 500 without leaking their text.
func writeError(c echo.Context, err error) error {
	for _, ec := range errorCases {
		if !errors.Is(err, ec.err) {
			continue
		}
		body := echo.Map{"error": ec.code, "message": err.Error()}
		var low *auction.BidTooLowError
		if errors.As(err, &low) {
			body["minimum_bid"] = low.Minimum.StringFixed(2)
		}
		return c.JSON(ec.status, body)
	}
	utils.Error("request failed", map[string]any{
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
		"error":  err.Error(),
	})
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "bad_request", "message": msg})
}
