package httpadapter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emalabs/ask-ema/internal/config"
	"github.com/emalabs/ask-ema/internal/observability/metrics"
)

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	cfg := config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
		AuditExportLimit:  10,
	}
	rt := NewRouter(cfg, &answererFake{}, &auditRepoFake{}, metrics.NewHTTPServerMetrics("test"), "test")
	handler := rt.Handler()

	req1 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestRequestIDMiddlewareGeneratesID(t *testing.T) {
	handler := newTestHandler(&answererFake{}, &auditRepoFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestRequestIDMiddlewarePreservesCallerID(t *testing.T) {
	handler := newTestHandler(&answererFake{}, &auditRepoFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "caller-supplied-id")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get(requestIDHeader); got != "caller-supplied-id" {
		t.Fatalf("expected caller request id echoed back, got %q", got)
	}
}
