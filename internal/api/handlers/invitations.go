package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholarsync/collab-plane/internal/api/middleware"
	"github.com/scholarsync/collab-plane/internal/invitations"
)

// InvitationHandler handles invitation HTTP requests.
type InvitationHandler struct {
	invitations *invitations.Service
	logger      *slog.Logger
}

// NewInvitationHandler creates a new invitation handler.
func NewInvitationHandler(svc *invitations.Service, logger *slog.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitations: svc,
		logger:      logger,
	}
}

// SendInvitationRequest represents the request body for sending an
// invitation.
type SendInvitationRequest struct {
	InvitedUserID string `json:"invited_user_id"`
}

// Send handles POST /v1/rooms/{roomID}/invitations.
func (h *InvitationHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	var req SendInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.InvitedUserID == "" {
		WriteBadRequest(w, "invited_user_id is required")
		return
	}

	inv, err := h.invitations.Send(r.Context(), roomID, req.InvitedUserID, userID)
	if err != nil {
		h.logger.Debug("invitation send failed",
			"room_id", roomID, "user_id", userID, "error", err)
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, inv)
}

// ListForRoom handles GET /v1/rooms/{roomID}/invitations.
func (h *InvitationHandler) ListForRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	invs, err := h.invitations.ListForRoom(r.Context(), roomID, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

// ListForUser handles GET /v1/invitations - invitations addressed to
// the caller.
func (h *InvitationHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	invs, err := h.invitations.ListForUser(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"invitations": invs})
}

// Accept handles POST /v1/invitations/{invitationID}/accept.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

// Reject handles POST /v1/invitations/{invitationID}/reject.
func (h *InvitationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *InvitationHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID := middleware.GetUserID(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	inv, err := h.invitations.Respond(r.Context(), invitationID, userID, accept)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

// Cancel handles POST /v1/invitations/{invitationID}/cancel.
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	inv, err := h.invitations.Cancel(r.Context(), invitationID, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

// Resend handles POST /v1/invitations/{invitationID}/resend.
func (h *InvitationHandler) Resend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	inv, err := h.invitations.Resend(r.Context(), invitationID, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, inv)
}

// Delete handles DELETE /v1/invitations/{invitationID}.
func (h *InvitationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	if err := h.invitations.Delete(r.Context(), invitationID, userID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
