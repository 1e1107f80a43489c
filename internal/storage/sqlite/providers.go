package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// CreateProvider inserts a new Provider row. A duplicate name surfaces as
// domain.ErrConflict.
func (s *Store) CreateProvider(ctx context.Context, name string, kind domain.ProviderKind, enabled bool, settings []byte) (*domain.Provider, error) {
	if settings == nil {
		settings = []byte("{}")
	}
	now := time.Now().UTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO providers (name, type, enabled, settings, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		name, string(kind), boolToInt(enabled), string(settings), timeToStr(now), timeToStr(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("provider %q: %w", name, domain.ErrConflict)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Provider{
		ID: id, Name: name, Type: kind, Enabled: enabled, Settings: settings,
		CreatedAt: now, UpdatedAt: now,
	}, nil
}

// GetProviderByName fetches a provider by its unique name.
func (s *Store) GetProviderByName(ctx context.Context, name string) (*domain.Provider, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, name, type, enabled, settings, created_at, updated_at FROM providers WHERE name = ?`, name)
	return scanProvider(row)
}

// ListProviders returns every provider ordered by name.
func (s *Store) ListProviders(ctx context.Context) ([]*domain.Provider, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, name, type, enabled, settings, created_at, updated_at FROM providers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProvider applies a partial update to enabled/settings and bumps
// updated_at, mirroring the original's dynamic SET-clause builder.
func (s *Store) UpdateProvider(ctx context.Context, name string, enabled *bool, settings []byte) (*domain.Provider, error) {
	var sets []string
	var args []any

	if enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*enabled))
	}
	if settings != nil {
		sets = append(sets, "settings = ?")
		args = append(args, string(settings))
	}
	if len(sets) == 0 {
		return s.GetProviderByName(ctx, name)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, timeToStr(time.Now().UTC()))
	args = append(args, name)

	res, err := s.write.ExecContext(ctx,
		fmt.Sprintf(`UPDATE providers SET %s WHERE name = ?`, strings.Join(sets, ", ")), args...)
	if err != nil {
		return nil, err
	}
	if err := checkRowsAffected(res, "provider"); err != nil {
		return nil, err
	}
	return s.GetProviderByName(ctx, name)
}

// DeleteProvider removes a provider by name. It does not cascade to
// provider_accounts (no declared foreign key, by design — see the
// migration comment and SPEC_FULL.md §9).
func (s *Store) DeleteProvider(ctx context.Context, name string) (bool, error) {
	res, err := s.write.ExecContext(ctx, `DELETE FROM providers WHERE name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanProvider(sc scanner) (*domain.Provider, error) {
	var p domain.Provider
	var kind string
	var enabled int
	var settings string
	var createdAt, updatedAt string

	if err := sc.Scan(&p.ID, &p.Name, &kind, &enabled, &settings, &createdAt, &updatedAt); err != nil {
		return nil, notFoundErr(err)
	}
	p.Type = domain.ProviderKind(kind)
	p.Enabled = enabled != 0
	p.Settings = []byte(settings)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
