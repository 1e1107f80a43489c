package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/storage"
)

// SessionCookieName is the admin session cookie, read by AuthenticateAdmin
// and set on successful login.
const SessionCookieName = "session"

// SessionAuth authenticates admin requests via the session cookie.
type SessionAuth struct {
	store storage.SessionStore
}

// NewSessionAuth returns a SessionAuth backed by store.
func NewSessionAuth(store storage.SessionStore) *SessionAuth {
	return &SessionAuth{store: store}
}

// AuthenticateAdmin reads the session cookie, rejects a missing, unknown,
// or expired session, and best-effort touches last_accessed on success --
// a failed touch never fails the request, mirroring the original's
// ignored update_session_access error.
func (a *SessionAuth) AuthenticateAdmin(ctx context.Context, r *http.Request) (*domain.Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, domain.ErrUnauthorized
	}

	sess, err := a.store.GetSession(ctx, cookie.Value)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if sess.Expired(time.Now()) {
		return nil, domain.ErrUnauthorized
	}

	_ = a.store.TouchSessionAccess(ctx, sess.ID) //nolint:errcheck

	return sess, nil
}
