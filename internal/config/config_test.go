package config

import "testing"

func TestLoadRequiresEncryptionKey(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when ENCRYPTION_KEY is unset")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("DATA_DIR", "")
	t.Setenv("PROXY_CONFIG_PATH", "")
	t.Setenv("PROXY_MANAGEMENT_URL", "")
	t.Setenv("MANAGEMENT_KEY", "")
	t.Setenv("CLIPROXY_BINARY_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	env, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if env.DatabasePath != "proxypal.db" {
		t.Errorf("DatabasePath = %q, want proxypal.db", env.DatabasePath)
	}
	if env.DataDir != "/data" {
		t.Errorf("DataDir = %q, want /data", env.DataDir)
	}
	if env.ProxyConfigPath != "./proxy-config.yaml" {
		t.Errorf("ProxyConfigPath = %q, want ./proxy-config.yaml", env.ProxyConfigPath)
	}
	if env.ProxyManagementURL != "http://127.0.0.1:8317" {
		t.Errorf("ProxyManagementURL = %q, want http://127.0.0.1:8317", env.ProxyManagementURL)
	}
	if env.ManagementKey != "proxypal-mgmt-key" {
		t.Errorf("ManagementKey = %q, want proxypal-mgmt-key", env.ManagementKey)
	}
	if env.CLIProxyBinaryPath != "cliproxyapi" {
		t.Errorf("CLIProxyBinaryPath = %q, want cliproxyapi", env.CLIProxyBinaryPath)
	}
	if env.Port != 3000 {
		t.Errorf("Port = %d, want 3000", env.Port)
	}
	if env.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", env.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("DATABASE_PATH", "/tmp/custom.db")
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	env, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if env.DatabasePath != "/tmp/custom.db" {
		t.Errorf("DatabasePath = %q, want /tmp/custom.db", env.DatabasePath)
	}
	if env.Port != 9090 {
		t.Errorf("Port = %d, want 9090", env.Port)
	}
	if env.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", env.LogLevel)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid LOG_LEVEL")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric PORT")
	}
}
