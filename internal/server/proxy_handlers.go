package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/forwarder"
	"github.com/hoangduy0308/proxypal/internal/procmgr"
)

// listAllProviderAccounts flattens every account across the given providers,
// for projection into the forwarder's config.yaml.
func (s *server) listAllProviderAccounts(ctx context.Context, providers []*domain.Provider) ([]*domain.ProviderAccount, error) {
	var all []*domain.ProviderAccount
	for _, p := range providers {
		accounts, err := s.deps.Store.ListProviderAccounts(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, accounts...)
	}
	return all, nil
}

type proxyStatusResponse struct {
	Running       bool     `json:"running"`
	Pid           *int     `json:"pid,omitempty"`
	UptimeSeconds *uint64  `json:"uptime_seconds,omitempty"`
	TotalRequests int64    `json:"total_requests"`
	Providers     []string `json:"enabled_providers"`
}

func (s *server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	running := s.deps.ProcManager != nil && s.deps.ProcManager.IsRunning()
	resp := proxyStatusResponse{Running: running}
	if running {
		if pid, ok := s.deps.ProcManager.Pid(); ok {
			resp.Pid = &pid
		}
		if secs, ok := s.deps.ProcManager.UptimeSeconds(); ok {
			resp.UptimeSeconds = &secs
		}
	}

	total, err := s.deps.Store.GetTotalRequests(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp.TotalRequests = total

	providers, err := s.deps.Store.ListProviders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	for _, p := range providers {
		if p.Enabled {
			resp.Providers = append(resp.Providers, p.Name)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// regenerateConfig loads the current server config, providers, and accounts
// and projects them to the forwarder's config.yaml.
func (s *server) regenerateConfig(w http.ResponseWriter, r *http.Request) bool {
	cfg, err := s.loadServerConfig(r)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	providers, err := s.deps.Store.ListProviders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	allAccounts, err := s.listAllProviderAccounts(r.Context(), providers)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	if err := forwarder.Generate(cfg, providers, allAccounts, s.deps.ProxyConfigPath); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write proxy config", "INTERNAL_ERROR")
		return false
	}
	return true
}

func (s *server) handleProxyStart(w http.ResponseWriter, r *http.Request) {
	if !s.regenerateConfig(w, r) {
		return
	}
	cfg, err := s.loadServerConfig(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pid, err := s.deps.ProcManager.Start(r.Context(), s.deps.ProxyConfigPath, cfg.ProxyPort)
	if err != nil {
		if errors.Is(err, procmgr.ErrAlreadyRunning) {
			writeError(w, http.StatusConflict, "proxy is already running", "CONFLICT")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to start proxy", "PROXY_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pid": pid})
}

func (s *server) handleProxyStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ProcManager.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stop proxy", "PROXY_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *server) handleProxyRestart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.ProcManager.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to stop proxy", "PROXY_ERROR")
		return
	}
	if !s.regenerateConfig(w, r) {
		return
	}
	cfg, err := s.loadServerConfig(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pid, err := s.deps.ProcManager.Start(r.Context(), s.deps.ProxyConfigPath, cfg.ProxyPort)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start proxy", "PROXY_ERROR")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pid": pid})
}
