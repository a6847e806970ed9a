package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
)

type errorResponse struct {
	Error string `json:"error"`
}

type errorStatus struct {
	err  error
	code int
	msg  string
}

// Checked in order; the first match wins.
var errorStatuses = []errorStatus{
	{domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{domain.ErrTokenRevoked, http.StatusUnauthorized, "token revoked"},
	{domain.ErrUnauthenticated, http.StatusUnauthorized, "invalid token"},
	{domain.ErrUserExists, http.StatusConflict, "user already exists"},
	{domain.ErrValidation, http.StatusUnprocessableEntity, "validation failed"},
}

// NewHTTPErrorHandler answers every failed identity request with
// {"error": "..."}. Errors with no known status are logged and become 500.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := statusOf(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func statusOf(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprint(he.Message)
	}
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.code, s.msg
		}
	}
	return http.StatusInternalServerError, "internal server error"
}
