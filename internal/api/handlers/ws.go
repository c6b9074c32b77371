package handlers

import (
	"log/slog"
	"net/http"

	"github.com/scholarsync/collab-plane/internal/auth"
	"github.com/scholarsync/collab-plane/internal/realtime"
)

// WSHandler upgrades authenticated connections to the realtime hub.
type WSHandler struct {
	hub    *realtime.Hub
	auth   *auth.Service
	logger *slog.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(hub *realtime.Hub, authService *auth.Service, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		auth:   authService,
		logger: logger,
	}
}

// Serve handles GET /v1/ws. The token is accepted from the Authorization
// header or a token query parameter, since browser websocket clients
// cannot set custom headers.
func (h *WSHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		WriteUnauthorized(w, "missing authentication token")
		return
	}

	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.logger.Debug("websocket auth failed", "error", err)
		WriteUnauthorized(w, "invalid or expired token")
		return
	}

	h.hub.Serve(w, r, claims.UserID)
}
