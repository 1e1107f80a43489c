// Package domain holds the core entities of the control plane: users,
// sessions, providers, provider accounts, OAuth states, usage logs, and
// settings. It imports nothing else under internal/, mirroring the
// teacher's dependency-free root domain package.
package domain

import "time"

// User is an API-key consumer.
type User struct {
	ID          int64
	Name        string
	APIKeyPrefix string
	APIKeyHash  string // Argon2 PHC string
	QuotaTokens *int64 // nil = unlimited
	UsedTokens  int64
	Enabled     bool
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// UserContext is the immutable view of a User exposed to end-user handlers
// once API-key authentication succeeds.
type UserContext struct {
	ID          int64
	Name        string
	QuotaTokens *int64
	UsedTokens  int64
	Enabled     bool
}

// OverQuota reports whether the user has exhausted a configured quota.
func (u UserContext) OverQuota() bool {
	return u.QuotaTokens != nil && u.UsedTokens >= *u.QuotaTokens
}

// Session is an admin browser session.
type Session struct {
	ID          string
	CSRFToken   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastAccessed time.Time
}

// Expired reports whether the session is no longer usable at t.
func (s Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// ProviderKind distinguishes how a Provider authenticates upstream.
type ProviderKind string

const (
	ProviderKindOAuth  ProviderKind = "oauth"
	ProviderKindAPIKey ProviderKind = "api_key"
)

// Provider is a declared upstream vendor (claude, chatgpt, gemini, copilot, ...).
type Provider struct {
	ID        int64
	Name      string
	Type      ProviderKind
	Enabled   bool
	Settings  []byte // opaque JSON blob
	CreatedAt time.Time
	UpdatedAt time.Time
}

// KnownProviders is the fixed set accepted for OAuth-bridge actions (§3, §4.9).
var KnownProviders = map[string]bool{
	"claude":   true,
	"chatgpt":  true,
	"gemini":   true,
	"copilot":  true,
}

// ProviderStatus is the derived admin-facing status of a Provider (§4.9).
type ProviderStatus string

const (
	ProviderStatusActive    ProviderStatus = "active"
	ProviderStatusInactive  ProviderStatus = "inactive"
	ProviderStatusNoAccounts ProviderStatus = "no_accounts"
)

// DeriveProviderStatus implements the enabled/count decision table from §4.9.
func DeriveProviderStatus(enabled bool, accountCount int64) ProviderStatus {
	switch {
	case !enabled:
		return ProviderStatusInactive
	case accountCount > 0:
		return ProviderStatusActive
	default:
		return ProviderStatusNoAccounts
	}
}

// ProviderAccount is a concrete credential bound to a Provider. Tokens are
// stored as ciphertext produced by internal/cryptotoken; never plaintext.
type ProviderAccount struct {
	ID         int64
	Provider   string
	AccountID  string
	TokensEnc  string // base64 ciphertext, see internal/cryptotoken
	Enabled    bool
	CreatedAt  time.Time
}

// OAuthState is a short-lived, single-use record binding a browser OAuth
// callback back to the admin session that initiated it.
type OAuthState struct {
	State          string
	Provider       string
	AdminSessionID string
	RedirectURL    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether the state can no longer be consumed at t.
func (s OAuthState) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// UsageStatus classifies a forwarded request's outcome.
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusError   UsageStatus = "error"
)

// UsageLog is an append-only record of one forwarded request.
type UsageLog struct {
	ID            int64
	UserID        int64
	Provider      string
	Model         string
	TokensInput   int64
	TokensOutput  int64
	RequestTimeMs int64
	Status        UsageStatus
	Timestamp     time.Time
}

// UsageStats aggregates request/token counts over a period.
type UsageStats struct {
	TotalRequests      int64 `json:"total_requests"`
	TotalTokensInput   int64 `json:"total_tokens_input"`
	TotalTokensOutput  int64 `json:"total_tokens_output"`
}

// ProviderUsage aggregates usage for one provider over a period.
type ProviderUsage struct {
	Provider     string
	Requests     int64
	TokensInput  int64
	TokensOutput int64
}

// DailyUsage aggregates usage for one calendar day.
type DailyUsage struct {
	Date         string
	Requests     int64
	TokensInput  int64
	TokensOutput int64
}

// RequestLogEntry is one row of the admin-facing paginated request log,
// joined against the owning user's name.
type RequestLogEntry struct {
	ID          int64
	Timestamp   time.Time
	UserID      int64
	UserName    string
	Provider    string
	Model       string
	TokensInput int64
	TokensOutput int64
	DurationMs  int64
	Status      string
}

// Period is the usage-query time window vocabulary (§4.2).
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// RateLimits is the configurable rate-limiting policy.
type RateLimits struct {
	RequestsPerMinute int64
	TokensPerDay      *int64
}

// LogLevel is the fixed set of forwarder/ambient log levels (§3).
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ValidLogLevel reports whether s is one of the fixed log levels.
func ValidLogLevel(s string) bool {
	switch LogLevel(s) {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// ServerConfig is the forwarder's runtime configuration, persisted as one
// Setting row (key "server_config") and projected to YAML by the config
// projector (C8). Defaults per §3: {8317, 3000, info, true, empty, 60, none}.
type ServerConfig struct {
	ProxyPort      uint16            `json:"proxyPort"`
	AdminPort      uint16            `json:"adminPort"`
	LogLevel       string            `json:"logLevel"`
	AutoStartProxy bool              `json:"autoStartProxy"`
	ModelMappings  map[string]string `json:"modelMappings"`
	RateLimits     ServerRateLimits  `json:"rateLimits"`
}

// ServerRateLimits is the rate-limit section of ServerConfig.
type ServerRateLimits struct {
	RequestsPerMinute uint64 `json:"requestsPerMinute"`
	TokensPerDay      *int64 `json:"tokensPerDay,omitempty"`
}

// DefaultServerConfig returns the documented defaults for a fresh install.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ProxyPort:      8317,
		AdminPort:      3000,
		LogLevel:       string(LogLevelInfo),
		AutoStartProxy: true,
		ModelMappings:  map[string]string{},
		RateLimits:     ServerRateLimits{RequestsPerMinute: 60},
	}
}

// ValidPort reports whether p is 0 (disabled) or a non-privileged port, per
// the §4.9 /config validation rule.
func ValidPort(p uint16) bool {
	return p == 0 || p >= 1024
}
