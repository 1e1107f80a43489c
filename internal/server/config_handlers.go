package server

import (
	"encoding/json"
	"net/http"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

const serverConfigKey = "server_config"

// loadServerConfig reads the persisted ServerConfig setting, falling back
// to the documented defaults on first run.
func (s *server) loadServerConfig(r *http.Request) (domain.ServerConfig, error) {
	raw, exists, err := s.deps.Store.GetSetting(r.Context(), serverConfigKey)
	if err != nil {
		return domain.ServerConfig{}, err
	}
	if !exists {
		return domain.DefaultServerConfig(), nil
	}
	var cfg domain.ServerConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.DefaultServerConfig(), nil
	}
	return cfg, nil
}

func (s *server) saveServerConfig(r *http.Request, cfg domain.ServerConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.deps.Store.SetSetting(r.Context(), serverConfigKey, string(raw))
}

func (s *server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.loadServerConfig(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type updateConfigResponse struct {
	domain.ServerConfig
	RestartRequired bool `json:"restart_required"`
}

// updateConfigRequest mirrors ServerConfig but with every field optional, so
// a caller can PATCH-via-PUT a single setting without zeroing the rest.
type updateConfigRequest struct {
	ProxyPort      *uint16                  `json:"proxyPort"`
	AdminPort      *uint16                  `json:"adminPort"`
	LogLevel       *string                  `json:"logLevel"`
	AutoStartProxy *bool                    `json:"autoStartProxy"`
	ModelMappings  map[string]string        `json:"modelMappings"`
	RateLimits     *updateRateLimitsRequest `json:"rateLimits"`
}

type updateRateLimitsRequest struct {
	RequestsPerMinute *uint64 `json:"requestsPerMinute"`
	TokensPerDay      *int64  `json:"tokensPerDay"`
}

// mergeServerConfig overlays only the fields req explicitly sets onto prev.
func mergeServerConfig(prev domain.ServerConfig, req updateConfigRequest) domain.ServerConfig {
	merged := prev
	if req.ProxyPort != nil {
		merged.ProxyPort = *req.ProxyPort
	}
	if req.AdminPort != nil {
		merged.AdminPort = *req.AdminPort
	}
	if req.LogLevel != nil {
		merged.LogLevel = *req.LogLevel
	}
	if req.AutoStartProxy != nil {
		merged.AutoStartProxy = *req.AutoStartProxy
	}
	if req.ModelMappings != nil {
		merged.ModelMappings = req.ModelMappings
	}
	if req.RateLimits != nil {
		if req.RateLimits.RequestsPerMinute != nil {
			merged.RateLimits.RequestsPerMinute = *req.RateLimits.RequestsPerMinute
		}
		if req.RateLimits.TokensPerDay != nil {
			merged.RateLimits.TokensPerDay = req.RateLimits.TokensPerDay
		}
	}
	return merged
}

// handleUpdateConfig merges a partial ServerConfig into the persisted one. If
// proxy_port is unchanged, the config file is regenerated and the
// forwarder is asked to reload best-effort; if admin_port changed, the
// response reports restart_required so the caller knows the admin server
// itself needs a restart to take effect.
func (s *server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	previous, err := s.loadServerConfig(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	merged := mergeServerConfig(previous, req)

	if !domain.ValidPort(merged.ProxyPort) || !domain.ValidPort(merged.AdminPort) {
		writeError(w, http.StatusBadRequest, "ports must be 0 or >= 1024", "VALIDATION_ERROR")
		return
	}
	if !domain.ValidLogLevel(merged.LogLevel) {
		writeError(w, http.StatusBadRequest, "invalid log level", "VALIDATION_ERROR")
		return
	}

	if err := s.saveServerConfig(r, merged); err != nil {
		writeDomainError(w, err)
		return
	}

	if merged.ProxyPort == previous.ProxyPort {
		if !s.regenerateConfig(w, r) {
			return
		}
		// Best-effort: the forwarder may not be running yet.
		_ = s.deps.Forwarder.SyncProvider(r.Context(), "*")
	}

	writeJSON(w, http.StatusOK, updateConfigResponse{
		ServerConfig:    merged,
		RestartRequired: merged.AdminPort != previous.AdminPort,
	})
}
