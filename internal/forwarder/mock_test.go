package forwarder

import (
	"context"
	"reflect"
	"testing"
)

func TestMockClientRecordsCalls(t *testing.T) {
	t.Parallel()
	m := NewMockClient()
	m.HealthResponse = &HealthStatus{Running: true}
	m.OAuthStartResult = &OAuthStart{AuthURL: "https://auth.example.com", State: "state123"}

	ctx := context.Background()
	_, _ = m.HealthCheck(ctx)
	_, _ = m.ListProviderStatuses(ctx)
	_, _ = m.StartOAuth(ctx, "google", true)
	_, _ = m.CheckOAuthStatus(ctx, "state123")
	_ = m.SyncProvider(ctx, "google")
	_ = m.RemoveProvider(ctx, "google")

	want := []string{
		"health_check",
		"list_provider_statuses",
		"start_oauth:google:true",
		"check_oauth_status:state123",
		"sync_provider:google",
		"remove_provider:google",
	}
	if !reflect.DeepEqual(m.CallLog, want) {
		t.Errorf("call log = %v, want %v", m.CallLog, want)
	}
}

func TestMockGetProviderStatusReturnsMatchingProvider(t *testing.T) {
	t.Parallel()
	m := NewMockClient()
	m.ProviderStatuses = []ProviderStatus{
		{Name: "google", Status: "healthy", AccountsCount: 2},
		{Name: "azure", Status: "unhealthy", LastError: "Auth failed"},
	}

	status, err := m.GetProviderStatus(context.Background(), "google")
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != "healthy" || status.AccountsCount != 2 {
		t.Errorf("status = %+v", status)
	}

	status, err = m.GetProviderStatus(context.Background(), "azure")
	if err != nil {
		t.Fatal(err)
	}
	if status.LastError == "" {
		t.Error("expected last error to be set")
	}

	if _, err := m.GetProviderStatus(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestNewHTTPClientFromEnvUsesDefaults(t *testing.T) {
	t.Setenv("PROXY_MANAGEMENT_URL", "")
	t.Setenv("MANAGEMENT_KEY", "")
	c := NewHTTPClientFromEnv()
	if c.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, defaultBaseURL)
	}
	if c.managementKey != defaultMgmtKey {
		t.Errorf("managementKey = %q, want %q", c.managementKey, defaultMgmtKey)
	}
}

func TestNewHTTPClientFromEnvReadsOverrides(t *testing.T) {
	t.Setenv("PROXY_MANAGEMENT_URL", "http://localhost:9999")
	t.Setenv("MANAGEMENT_KEY", "test-key")
	c := NewHTTPClientFromEnv()
	if c.baseURL != "http://localhost:9999" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.managementKey != "test-key" {
		t.Errorf("managementKey = %q", c.managementKey)
	}
}
