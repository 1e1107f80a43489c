package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// CreateUser generates a fresh API key, hashes it with Argon2, and inserts
// the user in one statement. A unique-name violation surfaces as
// domain.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, name string, quotaTokens *int64) (*domain.User, string, error) {
	key, prefix, err := domain.GenerateAPIKey(name)
	if err != nil {
		return nil, "", err
	}
	hash, err := domain.HashSecret(key)
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO users (name, api_key_prefix, api_key_hash, quota_tokens, used_tokens, enabled, created_at)
		 VALUES (?, ?, ?, ?, 0, 1, ?)`,
		name, prefix, hash, nullInt64(quotaTokens), timeToStr(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", fmt.Errorf("user %q: %w", name, domain.ErrConflict)
		}
		return nil, "", err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, "", err
	}

	u := &domain.User{
		ID: id, Name: name, APIKeyPrefix: prefix, APIKeyHash: hash,
		QuotaTokens: quotaTokens, UsedTokens: 0, Enabled: true, CreatedAt: now,
	}
	return u, key, nil
}

// ListUsers returns a page of users ordered by id, plus the total count.
func (s *Store) ListUsers(ctx context.Context, offset, limit int) ([]*domain.User, int64, error) {
	var total int64
	if err := s.read.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.read.QueryContext(ctx,
		`SELECT id, name, api_key_prefix, api_key_hash, quota_tokens, used_tokens, enabled, created_at, last_used_at
		 FROM users ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, api_key_prefix, api_key_hash, quota_tokens, used_tokens, enabled, created_at, last_used_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByAPIKeyPrefix fetches a user (with hash) by its stored prefix.
func (s *Store) GetUserByAPIKeyPrefix(ctx context.Context, prefix string) (*domain.User, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, api_key_prefix, api_key_hash, quota_tokens, used_tokens, enabled, created_at, last_used_at
		 FROM users WHERE api_key_prefix = ?`, prefix)
	return scanUser(row)
}

// UpdateUser applies a partial update (name/quota/enabled); quotaSet
// distinguishes "clear the quota" (quotaSet=true, quotaTokens=nil) from
// "leave the quota untouched" (quotaSet=false).
func (s *Store) UpdateUser(ctx context.Context, id int64, name *string, quotaTokens *int64, quotaSet bool, enabled *bool) (*domain.User, error) {
	var sets []string
	var args []any

	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if quotaSet {
		sets = append(sets, "quota_tokens = ?")
		args = append(args, nullInt64(quotaTokens))
	}
	if enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*enabled))
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	args = append(args, id)

	res, err := s.write.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	if err := checkRowsAffected(res, "user"); err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user; usage_logs cascade via ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.write.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "user")
}

// RegenerateAPIKey mints a new random tail and Argon2 hash for the same
// name (hence the same prefix), atomically.
func (s *Store) RegenerateAPIKey(ctx context.Context, id int64) (*domain.User, string, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, "", err
	}
	key, prefix, err := domain.GenerateAPIKey(u.Name)
	if err != nil {
		return nil, "", err
	}
	hash, err := domain.HashSecret(key)
	if err != nil {
		return nil, "", err
	}
	res, err := s.write.ExecContext(ctx,
		`UPDATE users SET api_key_prefix = ?, api_key_hash = ? WHERE id = ?`, prefix, hash, id)
	if err != nil {
		return nil, "", err
	}
	if err := checkRowsAffected(res, "user"); err != nil {
		return nil, "", err
	}
	u.APIKeyPrefix, u.APIKeyHash = prefix, hash
	return u, key, nil
}

// ResetUsedTokens zeros used_tokens and returns the previous value.
func (s *Store) ResetUsedTokens(ctx context.Context, id int64) (int64, error) {
	var prev int64
	if err := s.write.QueryRowContext(ctx, `SELECT used_tokens FROM users WHERE id = ?`, id).Scan(&prev); err != nil {
		return 0, notFoundErr(err)
	}
	if _, err := s.write.ExecContext(ctx, `UPDATE users SET used_tokens = 0 WHERE id = ?`, id); err != nil {
		return 0, err
	}
	return prev, nil
}

// TouchLastUsed bumps last_used_at to now.
func (s *Store) TouchLastUsed(ctx context.Context, id int64) error {
	_, err := s.write.ExecContext(ctx, `UPDATE users SET last_used_at = ? WHERE id = ?`, timeToStr(time.Now().UTC()), id)
	return err
}

func scanUser(sc scanner) (*domain.User, error) {
	var u domain.User
	var quota sql.NullInt64
	var enabled int
	var createdAt string
	var lastUsedAt sql.NullString

	if err := sc.Scan(&u.ID, &u.Name, &u.APIKeyPrefix, &u.APIKeyHash, &quota, &u.UsedTokens, &enabled, &createdAt, &lastUsedAt); err != nil {
		return nil, notFoundErr(err)
	}
	u.QuotaTokens = ptrFromNullInt64(quota)
	u.Enabled = enabled != 0
	u.CreatedAt = parseTime(createdAt)
	u.LastUsedAt = parseNullTime(lastUsedAt)
	return &u, nil
}

// isUniqueViolation reports whether err came from a SQLite UNIQUE
// constraint, the modernc.org/sqlite equivalent of a Postgres 23505.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
