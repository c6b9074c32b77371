package models

import (
	"time"
)

// InvitationStatus represents the status of a room invitation.
type InvitationStatus string

const (
	// InvitationStatusPending indicates the invitation awaits a response.
	InvitationStatusPending InvitationStatus = "pending"
	// InvitationStatusAccepted indicates the invited user joined the room.
	InvitationStatusAccepted InvitationStatus = "accepted"
	// InvitationStatusRejected indicates the invited user declined.
	InvitationStatusRejected InvitationStatus = "rejected"
	// InvitationStatusCancelled indicates the sender withdrew the
	// invitation. Cancelled invitations can be resent.
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// Invitation represents an invitation to join a room.
//
// Invariant: at most one pending invitation exists per (room, invited
// user) pair. RoomName is denormalized so invitation lists render
// without a room lookup.
type Invitation struct {
	ID            string           `json:"id"`
	RoomID        string           `json:"room_id"`
	RoomName      string           `json:"room_name"`
	InvitedUserID string           `json:"invited_user_id"`
	SenderID      string           `json:"sender_id"`
	Status        InvitationStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	RespondedAt   *time.Time       `json:"responded_at,omitempty"`
}

// IsPending reports whether the invitation still awaits a response.
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationStatusPending
}
