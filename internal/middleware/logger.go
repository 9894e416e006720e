package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/vehicle-auction-engine/internal/utils"
)

// RequestLogger writes one structured log line per request.
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler pick the status before we read it
				c.Error(err)
			}
			req, res := c.Request(), c.Response()
			fields := map[string]any{
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      c.Path(),
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"ip":         c.RealIP(),
			}
			if uid := UserID(c); uid != "" {
				fields["user_id"] = uid
			}
			switch {
			case res.Status >= 500:
				if err != nil {
					fields["error"] = err.Error()
				}
				utils.Error("request", fields)
			case res.Status >= 400:
				utils.Warn("request", fields)
			default:
				utils.Info("request", fields)
			}
			return nil
		}
	}
}
