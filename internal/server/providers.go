package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

type providerResponse struct {
	Name      string                `json:"name"`
	Type      domain.ProviderKind   `json:"type"`
	Enabled   bool                  `json:"enabled"`
	Settings  []byte                `json:"settings,omitempty"`
	Status    domain.ProviderStatus `json:"status"`
	CreatedAt string                `json:"created_at"`
	UpdatedAt string                `json:"updated_at"`
}

func (s *server) toProviderResponse(ctx context.Context, p *domain.Provider) providerResponse {
	count, _ := s.deps.Store.CountProviderAccounts(ctx, p.Name)
	return providerResponse{
		Name:      p.Name,
		Type:      p.Type,
		Enabled:   p.Enabled,
		Settings:  p.Settings,
		Status:    domain.DeriveProviderStatus(p.Enabled, count),
		CreatedAt: p.CreatedAt.Format(timeFormat),
		UpdatedAt: p.UpdatedAt.Format(timeFormat),
	}
}

func (s *server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.deps.Store.ListProviders(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]providerResponse, len(providers))
	for i, p := range providers {
		out[i] = s.toProviderResponse(r.Context(), p)
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": out})
}

func (s *server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, err := s.deps.Store.GetProviderByName(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toProviderResponse(r.Context(), p))
}

func (s *server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// No cascade to provider_accounts: rows for a deleted provider are left
	// as orphans rather than removed.
	found, err := s.deps.Store.DeleteProvider(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *server) handleProviderStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !domain.KnownProviders[name] {
		writeError(w, http.StatusBadRequest, "invalid provider", "INVALID_PROVIDER")
		return
	}
	status, err := s.deps.Forwarder.GetProviderStatus(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusBadGateway, "forwarder error", "BAD_GATEWAY")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type updateProviderSettingsRequest struct {
	Enabled  *bool  `json:"enabled"`
	Settings []byte `json:"settings"`
}

func (s *server) handleUpdateProviderSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req updateProviderSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.deps.Store.UpdateProvider(r.Context(), name, req.Enabled, req.Settings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.toProviderResponse(r.Context(), p))
}

func (s *server) handleStartOAuth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !domain.KnownProviders[name] {
		writeError(w, http.StatusBadRequest, "invalid provider", "INVALID_PROVIDER")
		return
	}
	start, err := s.deps.Forwarder.StartOAuth(r.Context(), name, true)
	if err != nil {
		writeError(w, http.StatusBadGateway, "forwarder error", "BAD_GATEWAY")
		return
	}

	sess := domain.SessionFromContext(r.Context())
	var adminSessionID string
	if sess != nil {
		adminSessionID = sess.ID
	}
	if _, err := s.deps.Store.CreateOAuthState(r.Context(), start.State, name, adminSessionID, "", oauthStateTTLSeconds); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"auth_url": start.AuthURL, "state": start.State})
}

const oauthStateTTLSeconds = 600
