// Package config loads the control plane's environment-driven configuration
// and seeds first-run state.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// Env is the process configuration, read once at startup from environment
// variables -- there is no YAML file for the control plane itself; the
// forwarder's own config.yaml is a generated artifact (internal/forwarder),
// not something this process loads.
type Env struct {
	EncryptionKey      string // ENCRYPTION_KEY, required
	AdminPassword      string // ADMIN_PASSWORD, first-run only
	DatabasePath       string // DATABASE_PATH, default "proxypal.db"
	DataDir            string // DATA_DIR, default "/data"
	ProxyConfigPath    string // PROXY_CONFIG_PATH, default "./proxy-config.yaml"
	ProxyManagementURL string // PROXY_MANAGEMENT_URL, default "http://127.0.0.1:8317"
	ManagementKey      string // MANAGEMENT_KEY, default "proxypal-mgmt-key"
	CLIProxyBinaryPath string // CLIPROXY_BINARY_PATH, default "cliproxyapi"
	Port               int    // PORT, default 3000
	LogLevel           string // LOG_LEVEL, default "info"
}

// Load reads Env from the process environment, applying documented defaults
// and failing only on ENCRYPTION_KEY, the one variable with no safe default.
func Load() (*Env, error) {
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		return nil, fmt.Errorf("config: ENCRYPTION_KEY is required")
	}

	e := &Env{
		EncryptionKey:      key,
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		DatabasePath:       envOr("DATABASE_PATH", "proxypal.db"),
		DataDir:            envOr("DATA_DIR", "/data"),
		ProxyConfigPath:    envOr("PROXY_CONFIG_PATH", "./proxy-config.yaml"),
		ProxyManagementURL: envOr("PROXY_MANAGEMENT_URL", "http://127.0.0.1:8317"),
		ManagementKey:      envOr("MANAGEMENT_KEY", "proxypal-mgmt-key"),
		CLIProxyBinaryPath: envOr("CLIPROXY_BINARY_PATH", "cliproxyapi"),
		Port:               3000,
		LogLevel:           envOr("LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("PORT"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("config: PORT: %w", err)
		}
		e.Port = p
	}

	if !domain.ValidLogLevel(e.LogLevel) {
		return nil, fmt.Errorf("config: LOG_LEVEL %q is not one of trace/debug/info/warn/error", e.LogLevel)
	}

	return e, nil
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
