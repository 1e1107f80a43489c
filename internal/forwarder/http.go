package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rs/dnscache"
)

const (
	defaultBaseURL = "http://127.0.0.1:8317"
	defaultMgmtKey = "proxypal-mgmt-key"
)

// hopByHop headers that must never be forwarded verbatim to the forwarder.
var hopByHop = map[string]bool{
	"Host":       true,
	"Connection": true,
}

// HTTPClient is the real Client, talking to a locally-running forwarder
// process over its management HTTP API.
type HTTPClient struct {
	baseURL       string
	managementKey string
	http          *http.Client
}

// NewHTTPClient returns an HTTPClient with a DNS-cached, connection-pooled
// transport -- the forwarder is local, so HTTP/2 is never attempted.
func NewHTTPClient(baseURL, managementKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:       baseURL,
		managementKey: managementKey,
		http:          &http.Client{Transport: newTransport(&dnscache.Resolver{})},
	}
}

// newTransport builds a tuned *http.Transport backed by a DNS cache, so a
// slow resolver never sits on the hot forwarding path.
func newTransport(resolver *dnscache.Resolver) *http.Transport {
	return &http.Transport{
		MaxIdleConnsPerHost: 100,
		MaxConnsPerHost:     200,
		IdleConnTimeout:     90 * time.Second,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(ips[0], port))
		},
	}
}

// NewHTTPClientFromEnv reads PROXY_MANAGEMENT_URL and MANAGEMENT_KEY, falling
// back to the forwarder's documented defaults.
func NewHTTPClientFromEnv() *HTTPClient {
	baseURL := os.Getenv("PROXY_MANAGEMENT_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	key := os.Getenv("MANAGEMENT_KEY")
	if key == "" {
		key = defaultMgmtKey
	}
	return NewHTTPClient(baseURL, key)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Management-Key", c.managementKey)
	return req, nil
}

func (c *HTTPClient) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("forwarder: %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) HealthCheck(ctx context.Context) (HealthStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v0/management/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	var dto struct {
		Running       bool    `json:"running"`
		UptimeSeconds *uint64 `json:"uptimeSeconds"`
		Version       *string `json:"version"`
	}
	if err := c.doJSON(req, &dto); err != nil {
		return HealthStatus{}, err
	}
	hs := HealthStatus{Running: dto.Running, UptimeSeconds: dto.UptimeSeconds}
	if dto.Version != nil {
		hs.Version = *dto.Version
	}
	return hs, nil
}

func (c *HTTPClient) ListProviderStatuses(ctx context.Context) ([]ProviderStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v0/management/providers", nil)
	if err != nil {
		return nil, err
	}
	var dtos []providerStatusDTO
	if err := c.doJSON(req, &dtos); err != nil {
		return nil, err
	}
	out := make([]ProviderStatus, len(dtos))
	for i, d := range dtos {
		out[i] = d.toDomain()
	}
	return out, nil
}

func (c *HTTPClient) GetProviderStatus(ctx context.Context, provider string) (ProviderStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v0/management/providers/"+url.PathEscape(provider), nil)
	if err != nil {
		return ProviderStatus{}, err
	}
	var dto providerStatusDTO
	if err := c.doJSON(req, &dto); err != nil {
		return ProviderStatus{}, err
	}
	return dto.toDomain(), nil
}

func (c *HTTPClient) StartOAuth(ctx context.Context, provider string, isWebUI bool) (OAuthStart, error) {
	path := fmt.Sprintf("/v0/management/%s-auth-url?is_webui=%s", url.PathEscape(provider), strconv.FormatBool(isWebUI))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return OAuthStart{}, err
	}
	var dto struct {
		AuthURL string `json:"authUrl"`
		State   string `json:"state"`
	}
	if err := c.doJSON(req, &dto); err != nil {
		return OAuthStart{}, err
	}
	return OAuthStart{AuthURL: dto.AuthURL, State: dto.State}, nil
}

func (c *HTTPClient) CheckOAuthStatus(ctx context.Context, state string) (bool, error) {
	path := "/v0/management/get-auth-status?state=" + url.QueryEscape(state)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	var dto struct {
		Completed bool `json:"completed"`
	}
	if err := c.doJSON(req, &dto); err != nil {
		return false, err
	}
	return dto.Completed, nil
}

// SyncProvider always hits /v0/management/reload; provider is accepted for
// interface symmetry but never sent, matching the ambiguous original bridge.
func (c *HTTPClient) SyncProvider(ctx context.Context, provider string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/v0/management/reload", nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *HTTPClient) RemoveProvider(ctx context.Context, provider string) error {
	path := "/v0/management/auth-files?provider=" + url.QueryEscape(provider)
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

// Forward passes a raw request through to the forwarder, stripping the
// Host and Connection headers the caller's transport would otherwise carry.
func (c *HTTPClient) Forward(ctx context.Context, method, path string, header http.Header, body []byte) (Response, error) {
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	for key, vals := range header {
		if hopByHop[key] {
			continue
		}
		req.Header[key] = vals
	}
	req.Header.Set("X-Management-Key", c.managementKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("forwarder: forward %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("forwarder: read forwarded response: %w", err)
	}
	return Response{Status: resp.StatusCode, Header: resp.Header, Body: respBody}, nil
}

type providerStatusDTO struct {
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	AccountsCount int64   `json:"accountsCount"`
	LastError     *string `json:"lastError"`
}

func (d providerStatusDTO) toDomain() ProviderStatus {
	ps := ProviderStatus{Name: d.Name, Status: d.Status, AccountsCount: d.AccountsCount}
	if d.LastError != nil {
		ps.LastError = *d.LastError
	}
	return ps
}
