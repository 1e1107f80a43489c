package forwarder

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// MockClient is an in-memory Client for tests and local development without
// a running forwarder process. Every call is appended to CallLog in the
// exact "verb:args" shape used by the control plane's own test suite.
type MockClient struct {
	mu sync.Mutex

	CallLog []string

	HealthResponse   *HealthStatus
	ProviderStatuses []ProviderStatus
	OAuthStartResult *OAuthStart
	OAuthStatus      bool
	ForwardResponse  *Response
}

// NewMockClient returns an empty MockClient; callers populate its response
// fields before exercising the code under test.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) logCall(call string) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, call)
	m.mu.Unlock()
}

func (m *MockClient) HealthCheck(ctx context.Context) (HealthStatus, error) {
	m.logCall("health_check")
	if m.HealthResponse == nil {
		return HealthStatus{}, fmt.Errorf("forwarder: no mock health response configured")
	}
	return *m.HealthResponse, nil
}

func (m *MockClient) ListProviderStatuses(ctx context.Context) ([]ProviderStatus, error) {
	m.logCall("list_provider_statuses")
	return m.ProviderStatuses, nil
}

func (m *MockClient) GetProviderStatus(ctx context.Context, provider string) (ProviderStatus, error) {
	m.logCall(fmt.Sprintf("get_provider_status:%s", provider))
	for _, s := range m.ProviderStatuses {
		if s.Name == provider {
			return s, nil
		}
	}
	return ProviderStatus{}, fmt.Errorf("forwarder: provider not found: %s", provider)
}

func (m *MockClient) StartOAuth(ctx context.Context, provider string, isWebUI bool) (OAuthStart, error) {
	m.logCall(fmt.Sprintf("start_oauth:%s:%t", provider, isWebUI))
	if m.OAuthStartResult == nil {
		return OAuthStart{}, fmt.Errorf("forwarder: no mock oauth response configured")
	}
	return *m.OAuthStartResult, nil
}

func (m *MockClient) CheckOAuthStatus(ctx context.Context, state string) (bool, error) {
	m.logCall(fmt.Sprintf("check_oauth_status:%s", state))
	return m.OAuthStatus, nil
}

func (m *MockClient) SyncProvider(ctx context.Context, provider string) error {
	m.logCall(fmt.Sprintf("sync_provider:%s", provider))
	return nil
}

func (m *MockClient) RemoveProvider(ctx context.Context, provider string) error {
	m.logCall(fmt.Sprintf("remove_provider:%s", provider))
	return nil
}

func (m *MockClient) Forward(ctx context.Context, method, path string, header http.Header, body []byte) (Response, error) {
	m.logCall(fmt.Sprintf("forward_request:%s:%s", method, path))
	if m.ForwardResponse == nil {
		return Response{}, fmt.Errorf("forwarder: no mock forward response configured")
	}
	return *m.ForwardResponse, nil
}

var _ Client = (*MockClient)(nil)
