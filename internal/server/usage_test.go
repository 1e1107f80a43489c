package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestUsageSummary(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	th.store.LogUsage(context.Background(), 1, "claude", "claude-sonnet-4-20250514", 100, 50, 10, "success")
	th.store.LogUsage(context.Background(), 2, "chatgpt", "gpt-4o", 200, 75, 15, "success")

	req := authedRequest(http.MethodGet, "/api/usage", "", cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"total_requests":2`) {
		t.Errorf("body = %s, want total_requests:2", rec.Body.String())
	}
}

func TestUsageLogs_FilterByProvider(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	th.store.LogUsage(context.Background(), 1, "claude", "claude-sonnet-4-20250514", 100, 50, 10, "success")
	th.store.LogUsage(context.Background(), 1, "chatgpt", "gpt-4o", 200, 75, 15, "success")

	req := authedRequest(http.MethodGet, "/api/usage/logs?provider=claude", "", cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "claude-sonnet") || strings.Contains(rec.Body.String(), "gpt-4o") {
		t.Errorf("filtered logs should only include claude entries: %s", rec.Body.String())
	}
}

func TestDailyUsage_ClampsDays(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	req := authedRequest(http.MethodGet, "/api/usage/daily?days=9000", "", cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even for an out-of-range days value", rec.Code)
	}
}
