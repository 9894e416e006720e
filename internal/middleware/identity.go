package middleware

// identity.go holds the accessors for the identity JWTAuth stores in the
// Echo context.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject, or "" on public routes.
func UserID(c echo.Context) string {
	if v, ok := c.Get(ContextUserID).(string); ok {
		return v
	}
	return ""
}

// Role returns the authenticated role, or "" on public routes.
func Role(c echo.Context) string {
	if v, ok := c.Get(ContextRole).(string); ok {
		return v
	}
	return ""
}
