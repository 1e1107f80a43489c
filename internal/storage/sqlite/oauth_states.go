package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// CreateOAuthState binds a forwarder-minted state token to the admin
// session and provider that started the flow, valid for ttl seconds.
func (s *Store) CreateOAuthState(ctx context.Context, state, provider, adminSessionID, redirectURL string, ttl int) (*domain.OAuthState, error) {
	now := time.Now().UTC()
	expires := now.Add(time.Duration(ttl) * time.Second)

	_, err := s.write.ExecContext(ctx,
		`INSERT INTO oauth_states (state, provider, admin_session_id, redirect_url, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		state, provider, adminSessionID, nullStr(redirectURL), timeToStr(now), timeToStr(expires),
	)
	if err != nil {
		return nil, err
	}
	return &domain.OAuthState{
		State: state, Provider: provider, AdminSessionID: adminSessionID,
		RedirectURL: redirectURL, CreatedAt: now, ExpiresAt: expires,
	}, nil
}

// ConsumeOAuthState returns the state if present and unexpired and deletes
// it in the same call, so a replayed callback with the same state finds
// nothing (§4.9 single-use guarantee). A second call for the same state, or
// a call for an expired one, returns (nil, nil), not an error.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (*domain.OAuthState, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT state, provider, admin_session_id, redirect_url, created_at, expires_at FROM oauth_states WHERE state = ? AND expires_at > ?`,
		state, timeToStr(time.Now().UTC()))
	st, err := scanOAuthState(row)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM oauth_states WHERE state = ?`, state); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

// GetOAuthState peeks at a state without consuming it.
func (s *Store) GetOAuthState(ctx context.Context, state string) (*domain.OAuthState, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT state, provider, admin_session_id, redirect_url, created_at, expires_at FROM oauth_states WHERE state = ?`, state)
	return scanOAuthState(row)
}

// SweepExpiredOAuthStates deletes every state past its expiry and returns
// how many rows were removed, for the hourly background sweep.
func (s *Store) SweepExpiredOAuthStates(ctx context.Context) (int64, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, timeToStr(time.Now().UTC()))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanOAuthState(sc scanner) (*domain.OAuthState, error) {
	var st domain.OAuthState
	var redirectURL sql.NullString
	var createdAt, expiresAt string

	if err := sc.Scan(&st.State, &st.Provider, &st.AdminSessionID, &redirectURL, &createdAt, &expiresAt); err != nil {
		return nil, notFoundErr(err)
	}
	if redirectURL.Valid {
		st.RedirectURL = redirectURL.String
	}
	st.CreatedAt = parseTime(createdAt)
	st.ExpiresAt = parseTime(expiresAt)
	return &st, nil
}

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
