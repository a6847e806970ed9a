package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/healthtracker/portal/internal/core/ports"
)

// ClaimsKey is where the Auth middleware leaves the verified token claims.
const ClaimsKey = "claims"

// ctxClaims fails fast with 401 when the Auth middleware did not run or
// left claims without a subject.
func ctxClaims(c echo.Context) (ports.TokenClaims, error) {
	claims, ok := c.Get(ClaimsKey).(ports.TokenClaims)
	if !ok || claims.UserID == "" {
		return ports.TokenClaims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

// requestContext carries the caller's address down to the audit trail.
func requestContext(c echo.Context) context.Context {
	return ports.WithClientIP(c.Request().Context(), c.RealIP())
}
