package server

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// modelEpoch is a fixed creation timestamp shared by every synthetic model
// entry; there is no real per-model creation date to report.
const modelEpoch = 1700000000

var staticModels = []modelEntry{
	{ID: "gpt-4o", Object: "model", Created: modelEpoch, OwnedBy: "openai"},
	{ID: "gpt-4o-mini", Object: "model", Created: modelEpoch, OwnedBy: "openai"},
	{ID: "claude-sonnet-4-20250514", Object: "model", Created: modelEpoch, OwnedBy: "anthropic"},
	{ID: "gemini-2.5-pro", Object: "model", Created: modelEpoch, OwnedBy: "google"},
}

func (s *server) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": staticModels})
}

// providerForModel derives the upstream provider from a model name prefix.
func providerForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini-"):
		return "google"
	default:
		return "unknown"
	}
}

var sanitizedRequestHeaders = map[string]bool{
	"content-length":    true,
	"transfer-encoding":  true,
	"connection":        true,
}

// handleForwardedCall returns a handler that forwards the request body to
// the named upstream path, logs usage, and relays the response status and
// body unchanged; Content-Length, Transfer-Encoding and Connection headers
// are not copied from the forwarder's response.
func (s *server) handleForwardedCall(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := domain.UserFromContext(r.Context())
		if user == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
			return
		}
		if user.OverQuota() {
			writeError(w, http.StatusTooManyRequests, "quota exceeded", "QUOTA_EXCEEDED")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "VALIDATION_ERROR")
			return
		}

		header := make(http.Header, len(r.Header))
		for k, v := range r.Header {
			if !sanitizedRequestHeaders[strings.ToLower(k)] {
				header[k] = v
			}
		}

		start := time.Now()
		resp, err := s.deps.Forwarder.Forward(r.Context(), http.MethodPost, path, header, body)
		elapsed := time.Since(start).Milliseconds()

		if err != nil {
			if s.deps.Metrics != nil {
				s.deps.Metrics.ForwarderErrors.Inc()
			}
			writeError(w, http.StatusBadGateway, "forwarder error", "BAD_GATEWAY")
			return
		}

		model := gjson.GetBytes(resp.Body, "model").String()
		if model == "" {
			model = "unknown"
		}
		provider := providerForModel(model)

		tokensIn := gjson.GetBytes(resp.Body, "usage.prompt_tokens").Int()
		tokensOut := gjson.GetBytes(resp.Body, "usage.completion_tokens").Int()

		status := domain.UsageStatusSuccess
		if resp.Status < 200 || resp.Status >= 300 {
			status = domain.UsageStatusError
		}

		if logErr := s.deps.Store.LogUsage(r.Context(), user.ID, provider, model, tokensIn, tokensOut, elapsed, status); logErr != nil {
			// Usage bookkeeping is best-effort from the caller's perspective;
			// the forwarded response still goes out.
			_ = logErr
		}
		if s.deps.Metrics != nil {
			s.deps.Metrics.TokensProcessed.WithLabelValues("input").Add(float64(tokensIn))
			s.deps.Metrics.TokensProcessed.WithLabelValues("output").Add(float64(tokensOut))
		}

		for k, v := range resp.Header {
			if !sanitizedRequestHeaders[strings.ToLower(k)] {
				w.Header()[k] = v
			}
		}
		w.WriteHeader(resp.Status)
		w.Write(resp.Body)
	}
}
