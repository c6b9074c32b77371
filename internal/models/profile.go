package models

import "time"

// Profile is a user profile. Only the fields the collaboration subsystem
// needs are modeled; feed and connection data live elsewhere.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// Post is a feed post that a research room can be linked to. The link is
// bidirectional: the room lists the post and the post carries the id of
// its discussion room.
type Post struct {
	ID               string    `json:"id"`
	AuthorID         string    `json:"author_id"`
	Content          string    `json:"content"`
	DiscussionRoomID string    `json:"discussion_room_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
