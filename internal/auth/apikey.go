// Package auth authenticates end-user API key requests and admin session
// cookies for the control plane.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/storage"
)

const (
	cacheTTL    = 30 * time.Second // short enough to pick up disable/quota changes promptly
	cacheMaxLen = 10_000
)

// APIKeyAuth authenticates requests bearing "sk-<name>-<hex>" API keys.
// Resolved users are cached in an otter W-TinyLFU cache keyed by prefix, to
// avoid a DB round trip on every request; the Argon2 verification of the
// presented key still runs on every request, cache hit or not.
type APIKeyAuth struct {
	store        storage.UserStore
	cache        *otter.Cache[string, *domain.User]
	idToPrefix   sync.Map // user id -> prefix, for targeted invalidation
}

// NewAPIKeyAuth returns an APIKeyAuth backed by store.
func NewAPIKeyAuth(store storage.UserStore) (*APIKeyAuth, error) {
	c, err := otter.New(&otter.Options[string, *domain.User]{
		MaximumSize:      cacheMaxLen,
		ExpiryCalculator: otter.ExpiryWriting[string, *domain.User](cacheTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create auth cache: %w", err)
	}
	return &APIKeyAuth{store: store, cache: c}, nil
}

// Authenticate implements the exact extractor pipeline from the original
// admin/end-user API key middleware (§4.4): missing header, non-Bearer
// scheme, non-"sk-" prefix, and an unextractable prefix are all collapsed
// to the same unauthorized outcome as an unknown key, so a caller cannot
// distinguish a malformed key from an unrecognized one.
func (a *APIKeyAuth) Authenticate(ctx context.Context, r *http.Request) (*domain.UserContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, domain.ErrUnauthorized
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	prefix, ok := domain.ExtractAPIKeyPrefix(raw)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	if user, ok := a.cache.GetIfPresent(prefix); ok {
		return a.checkAndTouch(ctx, user, raw)
	}

	user, err := a.store.GetUserByAPIKeyPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}

	a.cache.Set(prefix, user)
	a.idToPrefix.Store(user.ID, prefix)

	return a.checkAndTouch(ctx, user, raw)
}

// checkAndTouch applies the enabled/quota gates and fires an async
// last-used touch, the same sequence whether user came from cache or store.
func (a *APIKeyAuth) checkAndTouch(ctx context.Context, user *domain.User, raw string) (*domain.UserContext, error) {
	if !domain.VerifySecret(raw, user.APIKeyHash) {
		return nil, domain.ErrUnauthorized
	}
	if !user.Enabled {
		return nil, domain.ErrForbidden
	}
	uc := &domain.UserContext{
		ID: user.ID, Name: user.Name, QuotaTokens: user.QuotaTokens,
		UsedTokens: user.UsedTokens, Enabled: user.Enabled,
	}
	if uc.OverQuota() {
		return nil, domain.ErrQuotaExceeded
	}

	go func() {
		touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = a.store.TouchLastUsed(touchCtx, user.ID) //nolint:errcheck
	}()

	return uc, nil
}

// InvalidateByUserID removes a cached user by id, e.g. after a regenerate
// or disable admin action.
func (a *APIKeyAuth) InvalidateByUserID(id int64) {
	if prefix, ok := a.idToPrefix.LoadAndDelete(id); ok {
		a.cache.Invalidate(prefix.(string))
	}
}
