// Package forwarder talks to the locally-running CLIProxyAPI process over
// its management HTTP API: health, provider status, OAuth bridging, and
// raw request passthrough.
package forwarder

import (
	"context"
	"net/http"
)

// HealthStatus is the forwarder process's self-reported health.
type HealthStatus struct {
	Running        bool
	UptimeSeconds  *uint64
	Version        string
}

// ProviderStatus is one provider's admin-facing health, as reported by the
// forwarder itself (not to be confused with domain.ProviderStatus, which is
// derived locally from account counts).
type ProviderStatus struct {
	Name          string
	Status        string
	AccountsCount int64
	LastError     string
}

// OAuthStart is the result of kicking off an OAuth bridge flow.
type OAuthStart struct {
	AuthURL string
	State   string
}

// Response is a raw passthrough response from the forwarder.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
}

// Client talks to the forwarder's management API. Every method call is a
// synchronous round trip; callers apply their own timeouts via ctx.
type Client interface {
	HealthCheck(ctx context.Context) (HealthStatus, error)
	ListProviderStatuses(ctx context.Context) ([]ProviderStatus, error)
	GetProviderStatus(ctx context.Context, provider string) (ProviderStatus, error)
	StartOAuth(ctx context.Context, provider string, isWebUI bool) (OAuthStart, error)
	CheckOAuthStatus(ctx context.Context, state string) (bool, error)
	// SyncProvider always triggers a full forwarder config reload; provider
	// is accepted for a symmetric call signature but, matching the original
	// bridge, is never actually sent to the forwarder.
	SyncProvider(ctx context.Context, provider string) error
	RemoveProvider(ctx context.Context, provider string) error
	Forward(ctx context.Context, method, path string, header http.Header, body []byte) (Response, error)
}
