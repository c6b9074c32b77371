package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholarsync/collab-plane/internal/api/middleware"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/rooms"
)

// RoomHandler handles room HTTP requests.
type RoomHandler struct {
	rooms  *rooms.Service
	logger *slog.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(svc *rooms.Service, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:  svc,
		logger: logger,
	}
}

// CreateRoomRequest represents the request body for creating a room.
type CreateRoomRequest struct {
	Kind         models.RoomKind      `json:"kind"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Participants []string             `json:"participants"`
	PostID       string               `json:"post_id"`
	Settings     *models.RoomSettings `json:"settings"`
}

// Create handles POST /v1/rooms - provisions a new room. A direct room
// request for an already-paired user returns the existing room.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	result, err := h.rooms.CreateRoom(r.Context(), rooms.CreateRequest{
		Kind:         req.Kind,
		Name:         req.Name,
		Description:  req.Description,
		CreatorID:    userID,
		Participants: req.Participants,
		PostID:       req.PostID,
		Settings:     req.Settings,
	})
	if err != nil {
		h.logger.Error("room creation failed", "user_id", userID, "error", err)
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, result)
}

// List handles GET /v1/rooms - lists the caller's active rooms.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	list, err := h.rooms.ListRooms(r.Context(), userID)
	if err != nil {
		h.logger.Error("room listing failed", "user_id", userID, "error", err)
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"rooms": list})
}

// Get handles GET /v1/rooms/{roomID}.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	room, err := h.rooms.GetRoom(r.Context(), roomID, userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, room)
}

// Memberships handles GET /v1/memberships - the caller's reverse index
// of rooms and roles.
func (h *RoomHandler) Memberships(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	memberships, err := h.rooms.ListMemberships(r.Context(), userID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"memberships": memberships})
}

// AttachPostRequest represents the request body for linking a post.
type AttachPostRequest struct {
	PostID string `json:"post_id"`
}

// AttachPost handles POST /v1/rooms/{roomID}/posts - links a post to a
// research room.
func (h *RoomHandler) AttachPost(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	var req AttachPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.PostID == "" {
		WriteBadRequest(w, "post_id is required")
		return
	}

	if err := h.rooms.AttachPost(r.Context(), roomID, req.PostID, userID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "linked"})
}

// Deactivate handles DELETE /v1/rooms/{roomID} - soft-deletes a room.
func (h *RoomHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID := chi.URLParam(r, "roomID")

	if err := h.rooms.DeactivateRoom(r.Context(), roomID, userID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
