// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/scholarsync/collab-plane/internal/auth"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store       store.Store
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st store.Store, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:       st,
		authService: authSvc,
		logger:      logger,
	}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password required")
		return
	}
	if len(req.Password) < 8 {
		WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	profile := &models.Profile{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	}
	if err := h.store.Profiles().Create(r.Context(), profile, req.Password); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			WriteError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		h.logger.Error("failed to create profile", "error", err)
		WriteInternalError(w, "An unexpected error occurred")
		return
	}

	token, err := h.authService.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": profile.ID,
		"email":   profile.Email,
		"token":   token,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password required")
		return
	}

	profile, err := h.store.Profiles().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		WriteUnauthorized(w, "invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "An unexpected error occurred")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": profile.ID,
		"email":   profile.Email,
		"token":   token,
	})
}
