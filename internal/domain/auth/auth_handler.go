package auth

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/doubloon-app/doubloon/internal/domain/common"
)

// LoginRequest is the expected JSON body for member login.
type LoginRequest struct {
	Member string `json:"member"`
	Secret string `json:"secret"`
}

// LoginResponse is the successful JSON response after login.
type LoginResponse struct {
	Member string `json:"member"`
	Token  string `json:"token"`
}

// Handler exposes login and logout over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.WriteError(w, fmt.Errorf("invalid request body: %w", common.ErrBadRequest))
		return
	}
	if req.Member == "" || req.Secret == "" {
		common.WriteError(w, fmt.Errorf("member and secret are required: %w", common.ErrBadRequest))
		return
	}

	token, err := h.service.Login(req.Member, req.Secret)
	if err != nil {
		common.WriteError(w, err)
		return
	}

	if err := h.service.IssueSession(w, r, req.Member); err != nil {
		h.logger.Warn("failed to issue session cookie", "error", err)
	}

	common.WriteJSON(w, http.StatusOK, LoginResponse{Member: req.Member, Token: token})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearSession(w, r); err != nil {
		h.logger.Warn("failed to clear session cookie", "error", err)
	}
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
