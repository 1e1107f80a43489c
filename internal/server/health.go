package server

import "net/http"

type healthResponse struct {
	Status            string  `json:"status"`
	Version           string  `json:"version"`
	ProxyRunning      bool    `json:"proxy_running"`
	ProxyPid          *int    `json:"proxy_pid,omitempty"`
	UptimeSeconds     *uint64 `json:"uptime_seconds,omitempty"`
	DatabaseConnected bool    `json:"database_connected"`
}

// handleHealth reports process health per §6: no DB -> error; DB but proxy
// not running -> degraded; both healthy -> ok. Mounted at both /healthz and
// /api/health.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Version: s.deps.Version}

	dbOK := s.deps.Store.Ping(r.Context()) == nil
	resp.DatabaseConnected = dbOK

	running := s.deps.ProcManager != nil && s.deps.ProcManager.IsRunning()
	resp.ProxyRunning = running
	if running {
		if pid, ok := s.deps.ProcManager.Pid(); ok {
			resp.ProxyPid = &pid
		}
		if secs, ok := s.deps.ProcManager.UptimeSeconds(); ok {
			resp.UptimeSeconds = &secs
		}
	}

	status := http.StatusOK
	switch {
	case !dbOK:
		resp.Status = "error"
		status = http.StatusServiceUnavailable
	case !running:
		resp.Status = "degraded"
	default:
		resp.Status = "ok"
	}

	writeJSON(w, status, resp)
}
