// Package storage defines persistence interfaces for the control plane.
package storage

import (
	"context"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// UserStore manages User persistence, including derived API-key CRUD.
type UserStore interface {
	// CreateUser generates a key+prefix+Argon2 hash and inserts the user
	// atomically, returning the plaintext key alongside the stored record.
	CreateUser(ctx context.Context, name string, quotaTokens *int64) (*domain.User, string, error)
	ListUsers(ctx context.Context, offset, limit int) ([]*domain.User, int64, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	// GetUserByAPIKeyPrefix returns the user and its stored Argon2 hash for
	// verification by the caller.
	GetUserByAPIKeyPrefix(ctx context.Context, prefix string) (*domain.User, error)
	UpdateUser(ctx context.Context, id int64, name *string, quotaTokens *int64, quotaSet bool, enabled *bool) (*domain.User, error)
	DeleteUser(ctx context.Context, id int64) error
	RegenerateAPIKey(ctx context.Context, id int64) (*domain.User, string, error)
	// ResetUsedTokens zeros used_tokens and returns the previous value.
	ResetUsedTokens(ctx context.Context, id int64) (int64, error)
	// TouchLastUsed bumps last_used_at to now, best-effort (called async
	// from the request hot path, never blocks or fails a request).
	TouchLastUsed(ctx context.Context, id int64) error
}

// SessionStore manages admin Session persistence.
type SessionStore interface {
	CreateSession(ctx context.Context, ttlDays int) (*domain.Session, error)
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	TouchSessionAccess(ctx context.Context, id string) error
	DeleteSession(ctx context.Context, id string) error
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// ProviderStore manages Provider persistence.
type ProviderStore interface {
	CreateProvider(ctx context.Context, name string, kind domain.ProviderKind, enabled bool, settings []byte) (*domain.Provider, error)
	GetProviderByName(ctx context.Context, name string) (*domain.Provider, error)
	ListProviders(ctx context.Context) ([]*domain.Provider, error)
	UpdateProvider(ctx context.Context, name string, enabled *bool, settings []byte) (*domain.Provider, error)
	DeleteProvider(ctx context.Context, name string) (bool, error)
}

// ProviderAccountStore manages ProviderAccount persistence, encrypting and
// decrypting tokens via the cryptotoken cipher held by the implementation.
type ProviderAccountStore interface {
	CreateProviderAccount(ctx context.Context, provider, accountID string, tokens []byte) (*domain.ProviderAccount, error)
	GetProviderAccount(ctx context.Context, provider, accountID string) (*domain.ProviderAccount, error)
	ListProviderAccounts(ctx context.Context, provider string) ([]*domain.ProviderAccount, error)
	UpdateProviderAccountTokens(ctx context.Context, provider, accountID string, tokens []byte) (bool, error)
	DeleteProviderAccount(ctx context.Context, provider, accountID string) (bool, error)
	GetProviderAccountTokens(ctx context.Context, provider, accountID string) ([]byte, error)
	CountProviderAccounts(ctx context.Context, provider string) (int64, error)
}

// OAuthStateStore manages OAuthState persistence.
type OAuthStateStore interface {
	// CreateOAuthState binds state -- the token minted by the forwarder's
	// StartOAuth call and echoed back on the browser callback -- to the
	// admin session and provider that initiated the flow.
	CreateOAuthState(ctx context.Context, state, provider, adminSessionID, redirectURL string, ttl int) (*domain.OAuthState, error)
	// ConsumeOAuthState atomically returns and deletes an unexpired state;
	// a second call for the same state returns (nil, nil).
	ConsumeOAuthState(ctx context.Context, state string) (*domain.OAuthState, error)
	GetOAuthState(ctx context.Context, state string) (*domain.OAuthState, error)
	SweepExpiredOAuthStates(ctx context.Context) (int64, error)
}

// SettingStore manages the key/value settings table.
type SettingStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// UsageFilter narrows usage queries by optional user/provider/status.
type UsageFilter struct {
	UserID   *int64
	Provider *string
	Status   *string
}

// UsageStore manages UsageLog persistence and aggregation.
type UsageStore interface {
	// LogUsage appends a usage log and bumps the user's used_tokens/
	// last_used_at in one transaction (§5 ordering guarantee).
	LogUsage(ctx context.Context, userID int64, provider, model string, tokensInput, tokensOutput, requestTimeMs int64, status domain.UsageStatus) error
	GetUsageStats(ctx context.Context, period domain.Period) (domain.UsageStats, error)
	GetUserUsage(ctx context.Context, userID int64, period domain.Period) (domain.UsageStats, error)
	GetUsageByProvider(ctx context.Context, period domain.Period) ([]domain.ProviderUsage, error)
	GetDailyUsage(ctx context.Context, days int, filter UsageFilter) ([]domain.DailyUsage, error)
	GetUsageLogsPaginated(ctx context.Context, limit, offset int, filter UsageFilter) ([]*domain.UsageLog, int64, error)
	GetRequestLogsPaginated(ctx context.Context, limit, offset int, filter UsageFilter) ([]*domain.RequestLogEntry, int64, error)
	GetTotalRequests(ctx context.Context) (int64, error)
}

// Store composes every persistence concern behind one handle, the way the
// teacher's storage.Store composes APIKeyStore/ProviderStore/RouteStore/etc.
type Store interface {
	UserStore
	SessionStore
	ProviderStore
	ProviderAccountStore
	OAuthStateStore
	SettingStore
	UsageStore
	Ping(ctx context.Context) error
	Close() error
}
