package sqlite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// CreateSession mints a new admin session id (uuid v4, matching the
// original's session-id generation) and a random CSRF token, valid for
// ttlDays days.
func (s *Store) CreateSession(ctx context.Context, ttlDays int) (*domain.Session, error) {
	id := uuid.NewString()
	csrf, err := randomToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	expires := now.AddDate(0, 0, ttlDays)

	_, err = s.write.ExecContext(ctx,
		`INSERT INTO sessions (id, csrf_token, created_at, expires_at, last_accessed) VALUES (?, ?, ?, ?, ?)`,
		id, csrf, timeToStr(now), timeToStr(expires), timeToStr(now),
	)
	if err != nil {
		return nil, err
	}
	return &domain.Session{ID: id, CSRFToken: csrf, CreatedAt: now, ExpiresAt: expires, LastAccessed: now}, nil
}

// GetSession fetches an unexpired session by id; an unknown or expired id
// yields domain.ErrNotFound (§4.5).
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, csrf_token, created_at, expires_at, last_accessed FROM sessions WHERE id = ? AND expires_at > ?`,
		id, timeToStr(time.Now().UTC()))
	return scanSession(row)
}

// TouchSessionAccess bumps last_accessed to now; a missing session is not
// an error, mirroring the original's best-effort update_session_access.
func (s *Store) TouchSessionAccess(ctx context.Context, id string) error {
	_, err := s.write.ExecContext(ctx,
		`UPDATE sessions SET last_accessed = ? WHERE id = ?`, timeToStr(time.Now().UTC()), id)
	return err
}

// DeleteSession removes a session (used on admin logout).
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// SweepExpiredSessions deletes every session whose expires_at has passed
// and returns how many rows were removed, for the hourly background sweep.
func (s *Store) SweepExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, timeToStr(time.Now().UTC()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(sc scanner) (*domain.Session, error) {
	var sess domain.Session
	var createdAt, expiresAt, lastAccessed string
	if err := sc.Scan(&sess.ID, &sess.CSRFToken, &createdAt, &expiresAt, &lastAccessed); err != nil {
		return nil, notFoundErr(err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.ExpiresAt = parseTime(expiresAt)
	sess.LastAccessed = parseTime(lastAccessed)
	return &sess, nil
}

// randomToken returns a 32-byte hex-encoded random value, used for CSRF
// tokens and anywhere else an opaque high-entropy string is needed.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
