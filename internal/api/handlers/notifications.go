package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholarsync/collab-plane/internal/api/middleware"
	"github.com/scholarsync/collab-plane/internal/notify"
)

// NotificationHandler handles notification HTTP requests.
type NotificationHandler struct {
	notify *notify.Service
	logger *slog.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *notify.Service, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notify: svc,
		logger: logger,
	}
}

// List handles GET /v1/notifications - the caller's notifications,
// newest first. ?unread=true filters to unread records.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	ns, err := h.notify.List(r.Context(), userID, unreadOnly)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"notifications": ns})
}

// MarkRead handles POST /v1/notifications/{notificationID}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	notificationID := chi.URLParam(r, "notificationID")

	if err := h.notify.MarkRead(r.Context(), notificationID, userID); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
