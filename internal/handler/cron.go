package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// CronHandler exposes the settlement sweep to an external scheduler.
type CronHandler struct {
	Engine Engine
	Secret string
}

// SettleAuctions handles POST /v1/cron/settle-auctions.  The caller must
// send "Authorization: Bearer <CRON_SECRET>".  Per-auction failures are
// reported in the body; only a failure to list due auctions is a 500.
func (h *CronHandler) SettleAuctions(c echo.Context) error {
	token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if h.Secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.Secret)) != 1 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid cron secret"})
	}
	res, err := h.Engine.Sweep(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	utils.Info("settlement sweep", map[string]any{
		"due":             res.Due,
		"settled":         len(res.Settled),
		"skipped":         res.Skipped,
		"failed":          len(res.Failed),
		"notify_failures": res.NotifyFailures,
	})
	return c.JSON(http.StatusOK, toSweepView(res))
}
