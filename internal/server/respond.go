package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/hoangduy0308/proxypal/internal/domain"
	"github.com/hoangduy0308/proxypal/internal/ratelimit"
)

// maxBody is the maximum allowed request body size (1 MB); admin/end-user
// payloads here are small JSON documents, never file uploads.
const maxBody = 1 << 20

var bodyPool = sync.Pool{New: func() any { return new(bytes.Buffer) }}

// jsonCT is a pre-allocated header value slice, avoiding the []string{v}
// alloc that Header.Set creates on every call.
var jsonCT = []string{"application/json"}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		return
	}
	w.Header()["Content-Type"] = jsonCT
	w.WriteHeader(status)
	w.Write(data)
}

// errBody is the shape every error response takes: §7's
// {success, error, code} taxonomy.
type errBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errBody{Success: false, Error: msg, Code: code})
}

// writeDomainError maps a domain sentinel error to the §7 HTTP/code
// taxonomy. Unrecognized errors are logged server-side and collapse to a
// generic 500 so internal details never reach the client.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "FORBIDDEN")
	case errors.Is(err, domain.ErrCSRFMismatch):
		writeError(w, http.StatusForbidden, "CSRF token mismatch", "CSRF_MISMATCH")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "CONFLICT")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, domain.ErrInvalidProvider):
		writeError(w, http.StatusBadRequest, "invalid provider", "INVALID_PROVIDER")
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "quota exceeded", "QUOTA_EXCEEDED")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "RATE_LIMITED")
	case errors.Is(err, domain.ErrBadGateway):
		writeError(w, http.StatusBadGateway, "forwarder error", "BAD_GATEWAY")
	case errors.Is(err, domain.ErrProxyError):
		writeError(w, http.StatusBadGateway, "proxy error", "PROXY_ERROR")
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, "not configured", "NOT_CONFIGURED")
	default:
		slog.Error("unmapped error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "INTERNAL_ERROR")
	}
}

// decodeJSON limits body size, decodes JSON into v, and writes a 400 on
// error. Returns true if decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	buf := bodyPool.Get().(*bytes.Buffer)
	buf.Reset()
	if _, err := buf.ReadFrom(r.Body); err != nil {
		bodyPool.Put(buf)
		writeError(w, http.StatusBadRequest, "invalid request body", "VALIDATION_ERROR")
		return false
	}
	err := json.Unmarshal(buf.Bytes(), v)
	bodyPool.Put(buf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "VALIDATION_ERROR")
		return false
	}
	return true
}

// pagination mirrors the teacher's offset/limit/total envelope.
type pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

func parsePagination(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return
}

func parsePeriod(r *http.Request) domain.Period {
	switch domain.Period(r.URL.Query().Get("period")) {
	case domain.PeriodToday, domain.PeriodWeek, domain.PeriodMonth:
		return domain.Period(r.URL.Query().Get("period"))
	default:
		return domain.PeriodAll
	}
}

func setRateLimitHeaders(w http.ResponseWriter, r ratelimit.Result) {
	h := w.Header()
	h["X-Ratelimit-Limit"] = []string{strconv.FormatInt(r.Limit, 10)}
	h["X-Ratelimit-Remaining"] = []string{strconv.FormatInt(r.Remaining, 10)}
	if !r.Allowed {
		h["Retry-After"] = []string{strconv.FormatInt(r.ResetSecs, 10)}
	}
}
