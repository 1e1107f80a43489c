package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/storage"
)

const adminPasswordHashKey = "admin_password_hash"

// Bootstrap seeds admin_password_hash from ADMIN_PASSWORD on first run. It
// is a no-op once a hash has been stored -- ADMIN_PASSWORD never overwrites
// an existing admin password.
func Bootstrap(ctx context.Context, env *Env, store storage.SettingStore) error {
	if env.AdminPassword == "" {
		return nil
	}

	_, exists, err := store.GetSetting(ctx, adminPasswordHashKey)
	if err != nil {
		return fmt.Errorf("bootstrap: read admin password hash: %w", err)
	}
	if exists {
		return nil
	}

	hash, err := domain.HashSecret(env.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap: hash admin password: %w", err)
	}
	if err := store.SetSetting(ctx, adminPasswordHashKey, hash); err != nil {
		return fmt.Errorf("bootstrap: store admin password hash: %w", err)
	}
	slog.Info("bootstrapped admin password")
	return nil
}
