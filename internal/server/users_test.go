package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func authedRequest(method, path, body string, cookies []*http.Cookie) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	attachCookies(r, cookies)
	if method != http.MethodGet && method != http.MethodHead {
		r.Header.Set("X-CSRF-Token", csrfHeader(cookies))
	}
	return r
}

func TestUserCRUD(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	// Create.
	req := authedRequest(http.MethodPost, "/api/users", `{"name":"alice"}`, cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     int64  `json:"id"`
		APIKey string `json:"api_key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.APIKey == "" {
		t.Error("create response should expose the plaintext api key once")
	}

	// Get.
	req = authedRequest(http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), "", cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"api_key":`) {
		t.Error("get response should not re-expose the plaintext api key")
	}

	// Update.
	req = authedRequest(http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), `{"name":"alice2"}`, cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "alice2") {
		t.Error("update response should reflect new name")
	}

	// Delete.
	req = authedRequest(http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), "", cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}

	// Get after delete -> 404.
	req = authedRequest(http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), "", cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status = %d, want 404", rec.Code)
	}
}

func TestCreateUser_EmptyName(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	req := authedRequest(http.MethodPost, "/api/users", `{"name":""}`, cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRegenerateKey_InvalidatesCache(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	req := authedRequest(http.MethodPost, "/api/users", `{"name":"bob"}`, cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	var created struct {
		ID     int64  `json:"id"`
		APIKey string `json:"api_key"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	// Old key authenticates against /v1 before regeneration.
	fwdReq := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	fwdReq.Header.Set("Authorization", "Bearer "+created.APIKey)
	fwdRec := httptest.NewRecorder()
	th.ServeHTTP(fwdRec, fwdReq)
	if fwdRec.Code != http.StatusOK {
		t.Fatalf("pre-regen auth: status = %d", fwdRec.Code)
	}

	req = authedRequest(http.MethodPost, fmt.Sprintf("/api/users/%d/regenerate-key", created.ID), "", cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("regenerate: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var regen struct {
		APIKey string `json:"api_key"`
	}
	json.Unmarshal(rec.Body.Bytes(), &regen)
	if regen.APIKey == created.APIKey {
		t.Fatal("regenerated key should differ from the original")
	}

	// Old key must no longer authenticate (cache invalidated, not just the DB row).
	fwdReq2 := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	fwdReq2.Header.Set("Authorization", "Bearer "+created.APIKey)
	fwdRec2 := httptest.NewRecorder()
	th.ServeHTTP(fwdRec2, fwdReq2)
	if fwdRec2.Code != http.StatusUnauthorized {
		t.Errorf("old key after regenerate: status = %d, want 401", fwdRec2.Code)
	}

	// New key authenticates.
	fwdReq3 := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	fwdReq3.Header.Set("Authorization", "Bearer "+regen.APIKey)
	fwdRec3 := httptest.NewRecorder()
	th.ServeHTTP(fwdRec3, fwdReq3)
	if fwdRec3.Code != http.StatusOK {
		t.Errorf("new key: status = %d, want 200", fwdRec3.Code)
	}
}

func TestUpdateUser_DisablingInvalidatesCache(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	req := authedRequest(http.MethodPost, "/api/users", `{"name":"carol"}`, cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	var created struct {
		ID     int64  `json:"id"`
		APIKey string `json:"api_key"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	// Key authenticates against /v1 before the update, priming the auth cache.
	fwdReq := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	fwdReq.Header.Set("Authorization", "Bearer "+created.APIKey)
	fwdRec := httptest.NewRecorder()
	th.ServeHTTP(fwdRec, fwdReq)
	if fwdRec.Code != http.StatusOK {
		t.Fatalf("pre-update auth: status = %d", fwdRec.Code)
	}

	req = authedRequest(http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), `{"enabled":false}`, cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Cached credential must not outlive the disable (would otherwise serve
	// requests for up to the cache TTL after the user was disabled).
	fwdReq2 := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	fwdReq2.Header.Set("Authorization", "Bearer "+created.APIKey)
	fwdRec2 := httptest.NewRecorder()
	th.ServeHTTP(fwdRec2, fwdReq2)
	if fwdRec2.Code != http.StatusForbidden {
		t.Errorf("disabled user after update: status = %d, want 403", fwdRec2.Code)
	}
}

func TestResetUsage(t *testing.T) {
	t.Parallel()
	th := newTestHandler(t)
	cookies := login(t, th, "hunter2")

	req := authedRequest(http.MethodPost, "/api/users", `{"name":"carol"}`, cookies)
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	var created struct{ ID int64 `json:"id"` }
	json.Unmarshal(rec.Body.Bytes(), &created)

	th.store.LogUsage(context.Background(), created.ID, "claude", "claude-sonnet-4-20250514", 10, 20, 5, "success")

	req = authedRequest(http.MethodPost, fmt.Sprintf("/api/users/%d/reset-usage", created.ID), "", cookies)
	rec = httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"previous_used_tokens":30`) {
		t.Errorf("body = %s, want previous_used_tokens:30", rec.Body.String())
	}
}
