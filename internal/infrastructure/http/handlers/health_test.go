package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestReadiness(t *testing.T) {
	ok := CheckFunc{Label: "mongo", Fn: func(context.Context) error { return nil }}
	down := CheckFunc{Label: "redis", Fn: func(context.Context) error { return errors.New("refused") }}

	tests := []struct {
		name     string
		checkers []Checker
		code     int
	}{
		{"all healthy", []Checker{ok}, http.StatusOK},
		{"one down", []Checker{ok, down}, http.StatusServiceUnavailable},
		{"nothing to check", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)

			if err := NewReadinessHandler(tt.checkers...).Readiness(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			var body readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Dependencies) != len(tt.checkers) {
				t.Fatalf("expected %d dependencies, got %+v", len(tt.checkers), body.Dependencies)
			}
		})
	}
}
