package server

import (
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const oauthPageTemplate = `<!DOCTYPE html>
<html><head><title>%s</title>%s</head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4rem;">
<h2>%s</h2>
<p>%s</p>
</body></html>`

func writeOAuthPage(w http.ResponseWriter, status int, title, refresh, heading, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, oauthPageTemplate, title, refresh, heading, body)
}

// handleOAuthCallback is the public bridge a third-party OAuth provider
// redirects back to after the admin starts a linking flow. It has no
// session auth of its own -- the state token is the only credential.
func (s *server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider := chi.URLParam(r, "provider")

	if errMsg := q.Get("error"); errMsg != "" {
		desc := q.Get("error_description")
		writeOAuthPage(w, http.StatusOK, "Authorization failed", "",
			"Authorization failed", fmt.Sprintf("%s: %s", html.EscapeString(errMsg), html.EscapeString(desc)))
		return
	}

	state := q.Get("state")
	if state == "" {
		writeOAuthPage(w, http.StatusBadRequest, "Authorization failed", "",
			"Authorization failed", "missing state parameter")
		return
	}

	done, err := s.deps.Forwarder.CheckOAuthStatus(r.Context(), state)
	if err != nil {
		writeOAuthPage(w, http.StatusBadGateway, "Authorization failed", "",
			"Authorization failed", "could not reach the proxy process")
		return
	}
	if !done {
		writeOAuthPage(w, http.StatusOK, "Authorization pending",
			`<meta http-equiv="refresh" content="2">`,
			"Authorization pending", "Waiting for the provider to confirm. This page will refresh automatically.")
		return
	}

	if err := s.deps.Forwarder.SyncProvider(r.Context(), provider); err != nil {
		writeOAuthPage(w, http.StatusOK, "Authorization succeeded", "",
			"Authorization succeeded", "Linked, but the proxy config reload failed; restart the proxy to pick it up.")
		return
	}

	_, _ = s.deps.Store.ConsumeOAuthState(r.Context(), state)

	writeOAuthPage(w, http.StatusOK, "Authorization succeeded", "",
		"Authorization succeeded", fmt.Sprintf("%s is now linked. You can close this tab.", html.EscapeString(provider)))
}
