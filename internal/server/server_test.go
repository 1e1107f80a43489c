package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hoangduy0308/proxypal/internal/auth"
	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/forwarder"
	"github.com/hoangduy0308/proxypal/internal/procmgr"
	"github.com/hoangduy0308/proxypal/internal/ratelimit"
	"github.com/hoangduy0308/proxypal/internal/storage"
)

// memStore is a minimal in-memory storage.Store for server tests, in the
// style of the teacher's adminFakeStore.
type memStore struct {
	mu sync.Mutex

	nextUserID int64
	users      map[int64]*domain.User

	sessions map[string]*domain.Session

	providers map[string]*domain.Provider
	accounts  map[string][]*domain.ProviderAccount // provider -> accounts

	oauthStates map[string]*domain.OAuthState

	settings map[string]string

	requestLogs []*domain.RequestLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[int64]*domain.User),
		sessions:    make(map[string]*domain.Session),
		providers:   make(map[string]*domain.Provider),
		accounts:    make(map[string][]*domain.ProviderAccount),
		oauthStates: make(map[string]*domain.OAuthState),
		settings:    make(map[string]string),
	}
}

func (s *memStore) CreateUser(_ context.Context, name string, quotaTokens *int64) (*domain.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, prefix, _ := domain.GenerateAPIKey(name)
	hash, _ := domain.HashSecret(key)
	s.nextUserID++
	u := &domain.User{
		ID: s.nextUserID, Name: name, APIKeyPrefix: prefix, APIKeyHash: hash,
		QuotaTokens: quotaTokens, Enabled: true, CreatedAt: time.Now(),
	}
	s.users[u.ID] = u
	return u, key, nil
}

func (s *memStore) ListUsers(_ context.Context, offset, limit int) ([]*domain.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (s *memStore) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetUserByAPIKeyPrefix(_ context.Context, prefix string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.APIKeyPrefix == prefix {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) UpdateUser(_ context.Context, id int64, name *string, quotaTokens *int64, quotaSet bool, enabled *bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if quotaSet {
		u.QuotaTokens = quotaTokens
	}
	if enabled != nil {
		u.Enabled = *enabled
	}
	return u, nil
}

func (s *memStore) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memStore) RegenerateAPIKey(_ context.Context, id int64) (*domain.User, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, "", domain.ErrNotFound
	}
	key, prefix, _ := domain.GenerateAPIKey(u.Name)
	hash, _ := domain.HashSecret(key)
	u.APIKeyPrefix = prefix
	u.APIKeyHash = hash
	return u, key, nil
}

func (s *memStore) ResetUsedTokens(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	prev := u.UsedTokens
	u.UsedTokens = 0
	return prev, nil
}

func (s *memStore) TouchLastUsed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		now := time.Now()
		u.LastUsedAt = &now
	}
	return nil
}

func (s *memStore) CreateSession(_ context.Context, ttlDays int) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := &domain.Session{
		ID:           uuid.NewString(),
		CSRFToken:    uuid.NewString(),
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		LastAccessed: now,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess, nil
}

func (s *memStore) TouchSessionAccess(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.LastAccessed = time.Now()
	}
	return nil
}

func (s *memStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *memStore) SweepExpiredSessions(context.Context) (int64, error) { return 0, nil }

func (s *memStore) CreateProvider(_ context.Context, name string, kind domain.ProviderKind, enabled bool, settings []byte) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; ok {
		return nil, domain.ErrConflict
	}
	p := &domain.Provider{
		Name: name, Type: kind, Enabled: enabled, Settings: settings,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.providers[name] = p
	return p, nil
}

func (s *memStore) GetProviderByName(_ context.Context, name string) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListProviders(context.Context) ([]*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) UpdateProvider(_ context.Context, name string, enabled *bool, settings []byte) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.providers[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if enabled != nil {
		p.Enabled = *enabled
	}
	if settings != nil {
		p.Settings = settings
	}
	p.UpdatedAt = time.Now()
	return p, nil
}

func (s *memStore) DeleteProvider(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.providers[name]; !ok {
		return false, nil
	}
	delete(s.providers, name)
	return true, nil
}

func (s *memStore) CreateProviderAccount(_ context.Context, provider, accountID string, tokens []byte) (*domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &domain.ProviderAccount{Provider: provider, AccountID: accountID, TokensEnc: string(tokens), Enabled: true, CreatedAt: time.Now()}
	s.accounts[provider] = append(s.accounts[provider], a)
	return a, nil
}

func (s *memStore) GetProviderAccount(_ context.Context, provider, accountID string) (*domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts[provider] {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ListProviderAccounts(_ context.Context, provider string) ([]*domain.ProviderAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[provider], nil
}

func (s *memStore) UpdateProviderAccountTokens(_ context.Context, provider, accountID string, tokens []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts[provider] {
		if a.AccountID == accountID {
			a.TokensEnc = string(tokens)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) DeleteProviderAccount(_ context.Context, provider, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	accts := s.accounts[provider]
	for i, a := range accts {
		if a.AccountID == accountID {
			s.accounts[provider] = append(accts[:i], accts[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetProviderAccountTokens(_ context.Context, provider, accountID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts[provider] {
		if a.AccountID == accountID {
			return []byte(a.TokensEnc), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) CountProviderAccounts(_ context.Context, provider string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.accounts[provider])), nil
}

func (s *memStore) CreateOAuthState(_ context.Context, state, provider, adminSessionID, redirectURL string, ttl int) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	st := &domain.OAuthState{
		State: state, Provider: provider, AdminSessionID: adminSessionID,
		RedirectURL: redirectURL, CreatedAt: now, ExpiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
	s.oauthStates[state] = st
	return st, nil
}

func (s *memStore) ConsumeOAuthState(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.oauthStates[state]
	if !ok {
		return nil, nil
	}
	delete(s.oauthStates, state)
	return st, nil
}

func (s *memStore) GetOAuthState(_ context.Context, state string) (*domain.OAuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.oauthStates[state]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return st, nil
}

func (s *memStore) SweepExpiredOAuthStates(context.Context) (int64, error) { return 0, nil }

func (s *memStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *memStore) SetSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *memStore) LogUsage(_ context.Context, userID int64, provider, model string, tokensInput, tokensOutput, requestTimeMs int64, status domain.UsageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userID]; ok {
		u.UsedTokens += tokensInput + tokensOutput
		now := time.Now()
		u.LastUsedAt = &now
	}
	s.requestLogs = append(s.requestLogs, &domain.RequestLogEntry{
		ID: int64(len(s.requestLogs) + 1), Timestamp: time.Now(), UserID: userID,
		Provider: provider, Model: model, TokensInput: tokensInput, TokensOutput: tokensOutput,
		DurationMs: requestTimeMs, Status: string(status),
	})
	return nil
}

func (s *memStore) GetUsageStats(context.Context, domain.Period) (domain.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats domain.UsageStats
	for _, l := range s.requestLogs {
		stats.TotalRequests++
		stats.TotalTokensInput += l.TokensInput
		stats.TotalTokensOutput += l.TokensOutput
	}
	return stats, nil
}

func (s *memStore) GetUserUsage(_ context.Context, userID int64, _ domain.Period) (domain.UsageStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats domain.UsageStats
	for _, l := range s.requestLogs {
		if l.UserID != userID {
			continue
		}
		stats.TotalRequests++
		stats.TotalTokensInput += l.TokensInput
		stats.TotalTokensOutput += l.TokensOutput
	}
	return stats, nil
}

func (s *memStore) GetUsageByProvider(context.Context, domain.Period) ([]domain.ProviderUsage, error) {
	return nil, nil
}

func (s *memStore) GetDailyUsage(context.Context, int, storage.UsageFilter) ([]domain.DailyUsage, error) {
	return nil, nil
}

func (s *memStore) GetUsageLogsPaginated(context.Context, int, int, storage.UsageFilter) ([]*domain.UsageLog, int64, error) {
	return nil, 0, nil
}

func (s *memStore) GetRequestLogsPaginated(_ context.Context, limit, offset int, filter storage.UsageFilter) ([]*domain.RequestLogEntry, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var filtered []*domain.RequestLogEntry
	for _, l := range s.requestLogs {
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		if filter.Provider != nil && l.Provider != *filter.Provider {
			continue
		}
		if filter.Status != nil && l.Status != *filter.Status {
			continue
		}
		filtered = append(filtered, l)
	}
	total := int64(len(filtered))
	if offset >= len(filtered) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], total, nil
}

func (s *memStore) GetTotalRequests(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.requestLogs)), nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close() error               { return nil }

var _ storage.Store = (*memStore)(nil)

// fakeForwarder is a scriptable forwarder.Client for server tests.
type fakeForwarder struct {
	mu sync.Mutex

	healthErr error
	health    forwarder.HealthStatus

	providerStatuses map[string]forwarder.ProviderStatus
	providerErr      error

	oauthStart forwarder.OAuthStart
	oauthErr   error

	oauthDone bool
	oauthStatusErr error

	syncErr   error
	syncCalls []string

	removeErr error

	forwardResp forwarder.Response
	forwardErr  error
	forwardLog  []fakeForwardCall
}

type fakeForwardCall struct {
	method, path string
	header       http.Header
	body         []byte
}

func newFakeForwarder() *fakeForwarder {
	return &fakeForwarder{providerStatuses: make(map[string]forwarder.ProviderStatus)}
}

func (f *fakeForwarder) HealthCheck(context.Context) (forwarder.HealthStatus, error) {
	return f.health, f.healthErr
}

func (f *fakeForwarder) ListProviderStatuses(context.Context) ([]forwarder.ProviderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]forwarder.ProviderStatus, 0, len(f.providerStatuses))
	for _, st := range f.providerStatuses {
		out = append(out, st)
	}
	return out, f.providerErr
}

func (f *fakeForwarder) GetProviderStatus(_ context.Context, provider string) (forwarder.ProviderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.providerErr != nil {
		return forwarder.ProviderStatus{}, f.providerErr
	}
	return f.providerStatuses[provider], nil
}

func (f *fakeForwarder) StartOAuth(context.Context, string, bool) (forwarder.OAuthStart, error) {
	return f.oauthStart, f.oauthErr
}

func (f *fakeForwarder) CheckOAuthStatus(context.Context, string) (bool, error) {
	return f.oauthDone, f.oauthStatusErr
}

func (f *fakeForwarder) SyncProvider(_ context.Context, provider string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls = append(f.syncCalls, provider)
	return f.syncErr
}

func (f *fakeForwarder) RemoveProvider(context.Context, string) error { return f.removeErr }

func (f *fakeForwarder) Forward(_ context.Context, method, path string, header http.Header, body []byte) (forwarder.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwardLog = append(f.forwardLog, fakeForwardCall{method: method, path: path, header: header, body: body})
	return f.forwardResp, f.forwardErr
}

var _ forwarder.Client = (*fakeForwarder)(nil)

// fakeProcManager is a scriptable procmgr.Manager for server tests.
type fakeProcManager struct {
	mu      sync.Mutex
	running bool
	pid     int
	uptime  uint64
	startErr error
	stopErr  error
}

func (m *fakeProcManager) Start(context.Context, string, uint16) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return 0, m.startErr
	}
	m.running = true
	m.pid = 4242
	return m.pid, nil
}

func (m *fakeProcManager) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr != nil {
		return m.stopErr
	}
	m.running = false
	return nil
}

func (m *fakeProcManager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *fakeProcManager) Pid() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pid, m.running
}

func (m *fakeProcManager) UptimeSeconds() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uptime, m.running
}

var _ procmgr.Manager = (*fakeProcManager)(nil)

// testHandler bundles the wired http.Handler with its backing fakes so
// individual tests can script forwarder/proc-manager behavior and inspect
// store state directly.
type testHandler struct {
	http.Handler
	store   *memStore
	fwd     *fakeForwarder
	proc    *fakeProcManager
	apiAuth *auth.APIKeyAuth
}

func newTestHandler(t *testing.T) *testHandler {
	t.Helper()
	store := newMemStore()
	apiAuth, err := auth.NewAPIKeyAuth(store)
	if err != nil {
		t.Fatal(err)
	}
	fwd := newFakeForwarder()
	proc := &fakeProcManager{}

	h := New(Deps{
		Store:           store,
		APIKeyAuth:      apiAuth,
		SessionAuth:     auth.NewSessionAuth(store),
		RateLimiter:     ratelimit.New(60),
		Forwarder:       fwd,
		ProcManager:     proc,
		ProxyConfigPath: t.TempDir() + "/proxy-config.yaml",
		Version:         "test",
	})
	return &testHandler{Handler: h, store: store, fwd: fwd, proc: proc, apiAuth: apiAuth}
}

// login performs /api/auth/login and returns the session + CSRF cookies for
// use on subsequent requests.
func login(t *testing.T, th *testHandler, password string) []*http.Cookie {
	t.Helper()
	hash, err := domain.HashSecret(password)
	if err != nil {
		t.Fatal(err)
	}
	if err := th.store.SetSetting(context.Background(), adminPasswordKey, hash); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"password":"`+password+`"}`))
	rec := httptest.NewRecorder()
	th.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return rec.Result().Cookies()
}

func attachCookies(r *http.Request, cookies []*http.Cookie) {
	for _, c := range cookies {
		r.AddCookie(c)
	}
}

func csrfHeader(cookies []*http.Cookie) string {
	for _, c := range cookies {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	return ""
}
