package server

import (
	"net/http"
	"time"

	"github.com/hoangduy0308/proxypal/internal/auth"
	"github.com/hoangduy0308/proxypal/internal/domain"
)

const (
	sessionTTLDays  = 7
	csrfCookieName  = "csrf_token"
	adminPasswordKey = "admin_password_hash"
)

type loginRequest struct {
	Password string `json:"password"`
}

// handleLogin verifies the posted password against the stored admin hash and
// mints a session + CSRF cookie pair on success.
func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, exists, err := s.deps.Store.GetSetting(r.Context(), adminPasswordKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}
	if !exists {
		writeError(w, http.StatusInternalServerError, "admin password not configured", "NOT_CONFIGURED")
		return
	}
	if !domain.VerifySecret(req.Password, hash) {
		writeError(w, http.StatusUnauthorized, "invalid password", "UNAUTHORIZED")
		return
	}

	sess, err := s.deps.Store.CreateSession(r.Context(), sessionTTLDays)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
		return
	}

	setSessionCookies(w, sess)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// setSessionCookies sets the http-only session cookie and the
// script-readable CSRF cookie, both Secure + SameSite=Strict and expiring
// with the session (§4.5).
func setSessionCookies(w http.ResponseWriter, sess *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    sess.CSRFToken,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: false,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	expired := time.Unix(0, 0)
	http.SetCookie(w, &http.Cookie{Name: auth.SessionCookieName, Value: "", Path: "/", Expires: expired, HttpOnly: true, Secure: true, SameSite: http.SameSiteStrictMode})
	http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "", Path: "/", Expires: expired, Secure: true, SameSite: http.SameSiteStrictMode})
}

// handleLogout deletes the session row and clears cookies. Always succeeds,
// even if the session is already gone.
func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := domain.SessionFromContext(r.Context()); sess != nil {
		_ = s.deps.Store.DeleteSession(r.Context(), sess.ID) //nolint:errcheck
	}
	clearSessionCookies(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type authStatusResponse struct {
	Authenticated bool       `json:"authenticated"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// handleAuthStatus reports whether the request carries a valid session,
// without requiring one (unlike the rest of the admin surface).
func (s *server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.SessionAuth.AuthenticateAdmin(r.Context(), r)
	if err != nil {
		writeJSON(w, http.StatusOK, authStatusResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, authStatusResponse{Authenticated: true, ExpiresAt: &sess.ExpiresAt})
}
