package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthtracker/portal/internal/core/domain"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"wrapped credentials", fmt.Errorf("login: %w", domain.ErrInvalidCredentials), http.StatusUnauthorized, "invalid credentials"},
		{"revoked", domain.ErrTokenRevoked, http.StatusUnauthorized, "token revoked"},
		{"unauthenticated", domain.ErrUnauthenticated, http.StatusUnauthorized, "invalid token"},
		{"conflict", domain.ErrUserExists, http.StatusConflict, "user already exists"},
		{"validation", domain.ErrValidation, http.StatusUnprocessableEntity, "validation failed"},
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "invalid request body"), http.StatusBadRequest, "invalid request body"},
		{"unknown", errors.New("mongo: connection reset"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := statusOf(tt.err)
			if code != tt.code || msg != tt.msg {
				t.Fatalf("got %d %q, want %d %q", code, msg, tt.code, tt.msg)
			}
		})
	}
}

func TestHTTPErrorHandler_LogsOnlyUnexpected(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHTTPErrorHandler(zerolog.New(&buf))
	e := echo.New()

	rec := httptest.NewRecorder()
	handler(domain.ErrUserExists, e.NewContext(httptest.NewRequest(http.MethodPost, "/auth/register", nil), rec))
	if rec.Code != http.StatusConflict || buf.Len() != 0 {
		t.Fatalf("known error: got %d, log %q", rec.Code, buf.String())
	}

	rec = httptest.NewRecorder()
	handler(errors.New("boom"), e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/session", nil), rec))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "boom") {
		t.Fatalf("cause must not leak to the client: %s", rec.Body.String())
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("cause must be logged, got %q", buf.String())
	}
}

func TestHTTPErrorHandler_HeadHasNoBody(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrUnauthenticated, e.NewContext(httptest.NewRequest(http.MethodHead, "/auth/session", nil), rec))
	if rec.Code != http.StatusUnauthorized || rec.Body.Len() != 0 {
		t.Fatalf("expected bare 401, got %d %q", rec.Code, rec.Body.String())
	}
}
