package forwarder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

// BuildConfigYAML renders the forwarder's config.yaml from the control
// plane's own settings, providers and accounts. It builds the document as
// plain text line by line rather than through a generic YAML marshaler,
// since whole sections are omitted when there's nothing to say (no model
// mappings, no enabled providers, no rate limit) rather than emitted empty.
func BuildConfigYAML(cfg domain.ServerConfig, providers []*domain.Provider, accounts []*domain.ProviderAccount) string {
	var lines []string

	lines = append(lines, fmt.Sprintf("port: %d", cfg.ProxyPort))
	lines = append(lines, fmt.Sprintf("log-level: %s", cfg.LogLevel))
	lines = append(lines, "auth-dir: ./auth")
	lines = append(lines, "api-keys:")
	lines = append(lines, "  - proxypal-default-key")

	if len(cfg.ModelMappings) > 0 {
		lines = append(lines, "model-mappings:")
		froms := make([]string, 0, len(cfg.ModelMappings))
		for from := range cfg.ModelMappings {
			froms = append(froms, from)
		}
		sort.Strings(froms)
		for _, from := range froms {
			lines = append(lines, fmt.Sprintf("  %s: %s", from, cfg.ModelMappings[from]))
		}
	}

	var providerLines []string
	for _, p := range providers {
		if !p.Enabled {
			continue
		}
		n := 0
		for _, a := range accounts {
			if a.Provider == p.Name && a.Enabled {
				n++
			}
		}
		if n > 0 {
			providerLines = append(providerLines, fmt.Sprintf("  %s:", p.Name))
			providerLines = append(providerLines, "    enabled: true")
			providerLines = append(providerLines, fmt.Sprintf("    accounts: %d", n))
		}
	}
	if len(providerLines) > 0 {
		lines = append(lines, "providers:")
		lines = append(lines, providerLines...)
	}

	if cfg.RateLimits.RequestsPerMinute > 0 {
		lines = append(lines, "rate-limits:")
		lines = append(lines, fmt.Sprintf("  requests-per-minute: %d", cfg.RateLimits.RequestsPerMinute))
		if cfg.RateLimits.TokensPerDay != nil {
			lines = append(lines, fmt.Sprintf("  tokens-per-day: %d", *cfg.RateLimits.TokensPerDay))
		}
	}

	return strings.Join(lines, "\n")
}

// Generate writes the projected config.yaml to configPath, creating any
// missing parent directories.
func Generate(cfg domain.ServerConfig, providers []*domain.Provider, accounts []*domain.ProviderAccount, configPath string) error {
	yaml := BuildConfigYAML(cfg, providers, accounts)

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config projector: create dir: %w", err)
		}
	}
	if err := os.WriteFile(configPath, []byte(yaml), 0o644); err != nil {
		return fmt.Errorf("config projector: write config: %w", err)
	}
	return nil
}
