package models

import (
	"encoding/json"
	"time"
)

// NotificationType identifies the payload variant carried by a notification.
type NotificationType string

const (
	// NotificationRoomInvite is sent to a user invited to a room.
	NotificationRoomInvite NotificationType = "room_invite"
	// NotificationInviteAccepted is sent to the sender when an
	// invitation is accepted.
	NotificationInviteAccepted NotificationType = "invite_accepted"
	// NotificationInviteRejected is sent to the sender when an
	// invitation is rejected.
	NotificationInviteRejected NotificationType = "invite_rejected"
	// NotificationRoomAdded is sent to users placed in a newly created
	// room.
	NotificationRoomAdded NotificationType = "room_added"
	// NotificationWorkflowUpdated is sent to workflow participants when
	// a task changes.
	NotificationWorkflowUpdated NotificationType = "workflow_updated"
)

// Notification is a durable per-recipient record. The realtime push of
// the same payload is best effort; this row is the source of truth.
type Notification struct {
	ID          string           `json:"id"`
	RecipientID string           `json:"recipient_id"`
	Type        NotificationType `json:"type"`
	Payload     json.RawMessage  `json:"payload"`
	Read        bool             `json:"read"`
	CreatedAt   time.Time        `json:"created_at"`
}

// RoomInvitePayload is the payload for NotificationRoomInvite.
type RoomInvitePayload struct {
	InvitationID string `json:"invitation_id"`
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	SenderID     string `json:"sender_id"`
}

// InviteResponsePayload is the payload for NotificationInviteAccepted
// and NotificationInviteRejected.
type InviteResponsePayload struct {
	InvitationID string `json:"invitation_id"`
	RoomID       string `json:"room_id"`
	RoomName     string `json:"room_name"`
	ResponderID  string `json:"responder_id"`
}

// RoomAddedPayload is the payload for NotificationRoomAdded.
type RoomAddedPayload struct {
	RoomID   string   `json:"room_id"`
	RoomKind RoomKind `json:"room_kind"`
	RoomName string   `json:"room_name,omitempty"`
	AddedBy  string   `json:"added_by"`
}

// WorkflowUpdatedPayload is the payload for NotificationWorkflowUpdated.
// Workflow carries the state the change produced so clients can merge
// it without a follow-up fetch; for task_updated it holds only the
// changed task.
type WorkflowUpdatedPayload struct {
	WorkflowID string           `json:"workflow_id"`
	TaskID     string           `json:"task_id,omitempty"`
	ChangedBy  string           `json:"changed_by"`
	ChangeType string           `json:"change_type"`
	Workflow   WorkflowSnapshot `json:"workflow"`
}
