package db

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHealthReport_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(HealthReport{Status: "disabled", Backend: "memory"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "pool") || strings.Contains(string(raw), "error") {
		t.Errorf("expected pool and error omitted, got %s", raw)
	}
}

func TestCheckHealth_NilPool(t *testing.T) {
	report, code := CheckHealth(context.Background(), nil)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", code)
	}
	if report.Status != "disabled" || report.Backend != "memory" {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestHealthHandler_NilPool(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/db", nil)
	rec := httptest.NewRecorder()

	if err := HealthHandler(nil)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "disabled" {
		t.Errorf("expected status disabled, got %q", body.Status)
	}
}

func TestNewPool_InvalidURL(t *testing.T) {
	if _, err := NewPool(context.Background(), "://not a url", PoolOptions{}); err == nil {
		t.Error("expected error for invalid url")
	}
}
