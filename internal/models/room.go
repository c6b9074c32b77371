// Package models provides data structures for the collaboration platform.
package models

import (
	"time"
)

// RoomKind distinguishes the three room types.
type RoomKind string

const (
	// RoomKindDirect is a one-to-one message room.
	RoomKindDirect RoomKind = "direct"
	// RoomKindGroup is a named multi-party message room.
	RoomKindGroup RoomKind = "group"
	// RoomKindResearch is a named research room with unbounded membership.
	RoomKindResearch RoomKind = "research"
)

// Valid reports whether k is a known room kind.
func (k RoomKind) Valid() bool {
	switch k {
	case RoomKindDirect, RoomKindGroup, RoomKindResearch:
		return true
	}
	return false
}

// RoomSettings holds per-room behavior flags.
type RoomSettings struct {
	AllowMemberInvite bool `json:"allow_member_invite"`
	AllowMemberRemove bool `json:"allow_member_remove"`
	IsPublic          bool `json:"is_public"`
}

// Room represents a multi-party communication room. The backing realtime
// channel is referenced by ChannelRef; an empty ChannelRef means the
// channel has not been provisioned yet and the room must not be exposed
// to realtime messaging.
type Room struct {
	ID           string       `json:"id"`
	Kind         RoomKind     `json:"kind"`
	Name         string       `json:"name,omitempty"` // required for group/research, empty for direct
	Description  string       `json:"description,omitempty"`
	CreatedBy    string       `json:"created_by"`
	Participants []string     `json:"participants"`
	Admins       []string     `json:"admins,omitempty"` // empty for direct rooms
	IsActive     bool         `json:"is_active"`
	ChannelRef   string       `json:"channel_ref,omitempty"`
	PostLinks    []string     `json:"post_links,omitempty"` // research rooms only
	Settings     RoomSettings `json:"settings"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// HasParticipant reports whether userID is a participant of the room.
func (r *Room) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userID is an admin of the room.
func (r *Room) IsAdmin(userID string) bool {
	for _, a := range r.Admins {
		if a == userID {
			return true
		}
	}
	return false
}

// DirectPairKey returns the canonical key for a direct room's unordered
// participant pair. The room store keeps a partial unique index on this
// key so at most one active direct room exists per pair.
func DirectPairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// MemberRole is a participant's role within a room.
type MemberRole string

const (
	// RoleAdmin can manage membership and deactivate the room.
	RoleAdmin MemberRole = "admin"
	// RoleModerator can moderate the room's channel.
	RoleModerator MemberRole = "moderator"
	// RoleMember is a regular participant.
	RoleMember MemberRole = "member"
)

// Membership records a participant's role in a room. It doubles as the
// reverse index entry "rooms I belong to, with my role" when queried by
// user.
type Membership struct {
	RoomID   string     `json:"room_id"`
	UserID   string     `json:"user_id"`
	Role     MemberRole `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
}
