package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hoangduy0308/proxypal/internal/domain"
)

type userResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	APIKeyPrefix string `json:"api_key_prefix"`
	QuotaTokens *int64 `json:"quota_tokens"`
	UsedTokens  int64  `json:"used_tokens"`
	Enabled     bool   `json:"enabled"`
	CreatedAt   string `json:"created_at"`
	LastUsedAt  *string `json:"last_used_at,omitempty"`
	APIKey      string `json:"api_key,omitempty"`
}

func toUserResponse(u *domain.User) userResponse {
	resp := userResponse{
		ID:           u.ID,
		Name:         u.Name,
		APIKeyPrefix: u.APIKeyPrefix,
		QuotaTokens:  u.QuotaTokens,
		UsedTokens:   u.UsedTokens,
		Enabled:      u.Enabled,
		CreatedAt:    u.CreatedAt.Format(timeFormat),
	}
	if u.LastUsedAt != nil {
		s := u.LastUsedAt.Format(timeFormat)
		resp.LastUsedAt = &s
	}
	return resp
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

type listUsersResponse struct {
	Users      []userResponse `json:"users"`
	Pagination pagination     `json:"pagination"`
}

func (s *server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	offset, limit := parsePagination(r)
	users, total, err := s.deps.Store.ListUsers(r.Context(), offset, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]userResponse, len(users))
	for i, u := range users {
		out[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, listUsersResponse{
		Users:      out,
		Pagination: pagination{Offset: offset, Limit: limit, Total: int(total)},
	})
}

type createUserRequest struct {
	Name        string `json:"name"`
	QuotaTokens *int64 `json:"quota_tokens"`
}

func (s *server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", "VALIDATION_ERROR")
		return
	}
	user, apiKey, err := s.deps.Store.CreateUser(r.Context(), req.Name, req.QuotaTokens)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := toUserResponse(user)
	resp.APIKey = apiKey
	writeJSON(w, http.StatusCreated, resp)
}

func (s *server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	user, err := s.deps.Store.GetUser(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type updateUserRequest struct {
	Name        *string `json:"name"`
	QuotaTokens *int64  `json:"quota_tokens"`
	QuotaSet    bool    `json:"quota_set"`
	Enabled     *bool   `json:"enabled"`
}

func (s *server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	var req updateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.deps.Store.UpdateUser(r.Context(), id, req.Name, req.QuotaTokens, req.QuotaSet, req.Enabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.deps.APIKeyAuth != nil {
		s.deps.APIKeyAuth.InvalidateByUserID(id)
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	if err := s.deps.Store.DeleteUser(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	if s.deps.APIKeyAuth != nil {
		s.deps.APIKeyAuth.InvalidateByUserID(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *server) handleRegenerateKey(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	user, apiKey, err := s.deps.Store.RegenerateAPIKey(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if s.deps.APIKeyAuth != nil {
		s.deps.APIKeyAuth.InvalidateByUserID(id)
	}
	resp := toUserResponse(user)
	resp.APIKey = apiKey
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleResetUsage(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found", "NOT_FOUND")
		return
	}
	previous, err := s.deps.Store.ResetUsedTokens(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"previous_used_tokens": previous})
}
