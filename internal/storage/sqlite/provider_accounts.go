package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// CreateProviderAccount encrypts tokens with the store's cipher and inserts
// a new account row. A duplicate (provider, account_id) pair surfaces as
// domain.ErrConflict.
func (s *Store) CreateProviderAccount(ctx context.Context, provider, accountID string, tokens []byte) (*domain.ProviderAccount, error) {
	enc, err := s.cipher.EncryptJSON(tokens)
	if err != nil {
		return nil, fmt.Errorf("encrypt provider account tokens: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO provider_accounts (provider, account_id, tokens, enabled, created_at) VALUES (?, ?, ?, 1, ?)`,
		provider, accountID, enc, timeToStr(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("provider account %s/%s: %w", provider, accountID, domain.ErrConflict)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.ProviderAccount{
		ID: id, Provider: provider, AccountID: accountID, TokensEnc: enc, Enabled: true, CreatedAt: now,
	}, nil
}

// GetProviderAccount fetches an account (ciphertext tokens, not decrypted).
func (s *Store) GetProviderAccount(ctx context.Context, provider, accountID string) (*domain.ProviderAccount, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, provider, account_id, tokens, enabled, created_at FROM provider_accounts WHERE provider = ? AND account_id = ?`,
		provider, accountID)
	return scanProviderAccount(row)
}

// ListProviderAccounts returns every account for a provider.
func (s *Store) ListProviderAccounts(ctx context.Context, provider string) ([]*domain.ProviderAccount, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, provider, account_id, tokens, enabled, created_at FROM provider_accounts WHERE provider = ? ORDER BY id`,
		provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.ProviderAccount
	for rows.Next() {
		a, err := scanProviderAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateProviderAccountTokens re-encrypts and replaces the stored tokens
// for an account, e.g. after a refresh-token rotation.
func (s *Store) UpdateProviderAccountTokens(ctx context.Context, provider, accountID string, tokens []byte) (bool, error) {
	enc, err := s.cipher.EncryptJSON(tokens)
	if err != nil {
		return false, fmt.Errorf("encrypt provider account tokens: %w", err)
	}
	res, err := s.write.ExecContext(ctx,
		`UPDATE provider_accounts SET tokens = ? WHERE provider = ? AND account_id = ?`, enc, provider, accountID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteProviderAccount removes an account.
func (s *Store) DeleteProviderAccount(ctx context.Context, provider, accountID string) (bool, error) {
	res, err := s.write.ExecContext(ctx,
		`DELETE FROM provider_accounts WHERE provider = ? AND account_id = ?`, provider, accountID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetProviderAccountTokens returns the decrypted token payload for an
// account, for use by the forwarder when launching a process.
func (s *Store) GetProviderAccountTokens(ctx context.Context, provider, accountID string) ([]byte, error) {
	var enc string
	err := s.read.QueryRowContext(ctx,
		`SELECT tokens FROM provider_accounts WHERE provider = ? AND account_id = ?`, provider, accountID).Scan(&enc)
	if err != nil {
		return nil, notFoundErr(err)
	}
	return s.cipher.Decrypt(enc)
}

// CountProviderAccounts reports how many accounts exist for a provider,
// used to derive domain.ProviderStatus (§4.9).
func (s *Store) CountProviderAccounts(ctx context.Context, provider string) (int64, error) {
	var n int64
	err := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provider_accounts WHERE provider = ?`, provider).Scan(&n)
	return n, err
}

func scanProviderAccount(sc scanner) (*domain.ProviderAccount, error) {
	var a domain.ProviderAccount
	var enabled int
	var createdAt string

	if err := sc.Scan(&a.ID, &a.Provider, &a.AccountID, &a.TokensEnc, &enabled, &createdAt); err != nil {
		return nil, notFoundErr(err)
	}
	a.Enabled = enabled != 0
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}
