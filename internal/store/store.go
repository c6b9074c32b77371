// Package store provides record store access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/scholarsync/collab-plane/internal/models"
)

// Common errors shared by every Store implementation.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateKey is returned when attempting to create a resource
	// with a duplicate key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDuplicateDirectRoom is returned when a second active direct room
	// is created for the same participant pair.
	ErrDuplicateDirectRoom = errors.New("direct room already exists for pair")

	// ErrStaleStatus is returned by SetStatus when the stored status no
	// longer matches the expected one, meaning a concurrent transition
	// won.
	ErrStaleStatus = errors.New("invitation status changed concurrently")

	// ErrInvalidCredentials is returned by Authenticate on a bad
	// email/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// RoomStore defines operations for room records.
type RoomStore interface {
	// Create persists a new room record. ChannelRef may be empty; it is
	// set later via SetChannelRef once provisioning succeeds.
	Create(ctx context.Context, room *models.Room) error
	// Get retrieves a room by ID. Returns nil, nil when absent.
	Get(ctx context.Context, id string) (*models.Room, error)
	// FindDirectByPair returns the oldest active direct room whose
	// participant set is exactly {userA, userB}, or nil.
	FindDirectByPair(ctx context.Context, userA, userB string) (*models.Room, error)
	// ListByUser retrieves all active rooms the user participates in.
	ListByUser(ctx context.Context, userID string) ([]*models.Room, error)
	// SetChannelRef records the provisioned channel identifier.
	SetChannelRef(ctx context.Context, id, channelRef string) error
	// AddParticipant appends a user to the room's participant set.
	AddParticipant(ctx context.Context, roomID, userID string) error
	// LinkPost appends a post to the room's post links.
	LinkPost(ctx context.Context, roomID, postID string) error
	// Deactivate soft-deletes a room. Rooms are never hard-deleted.
	Deactivate(ctx context.Context, id string) error
}

// MembershipStore defines operations for per-room roles. Role writes are
// owned exclusively by the room and invitation services.
type MembershipStore interface {
	// Add records a participant's role in a room.
	Add(ctx context.Context, m *models.Membership) error
	// Get retrieves a membership. Returns nil, nil when absent.
	Get(ctx context.Context, roomID, userID string) (*models.Membership, error)
	// ListByRoom retrieves all memberships of a room.
	ListByRoom(ctx context.Context, roomID string) ([]*models.Membership, error)
	// ListByUser retrieves the reverse index: every room the user belongs
	// to, with the user's role.
	ListByUser(ctx context.Context, userID string) ([]*models.Membership, error)
}

// InvitationStore defines operations for room invitations.
type InvitationStore interface {
	// Create persists a new invitation.
	Create(ctx context.Context, inv *models.Invitation) error
	// Get retrieves an invitation by ID. Returns nil, nil when absent.
	Get(ctx context.Context, id string) (*models.Invitation, error)
	// FindPending returns the pending invitation for (roomID, userID),
	// or nil.
	FindPending(ctx context.Context, roomID, userID string) (*models.Invitation, error)
	// SetStatus transitions an invitation from one status to another,
	// updating the response time. The write applies only when the
	// stored status still equals from; a concurrent transition surfaces
	// as ErrStaleStatus.
	SetStatus(ctx context.Context, id string, from, to models.InvitationStatus, respondedAt *time.Time) error
	// Delete hard-removes an invitation.
	Delete(ctx context.Context, id string) error
	// ListByInvitee retrieves invitations addressed to a user.
	ListByInvitee(ctx context.Context, userID string) ([]*models.Invitation, error)
	// ListByRoom retrieves invitations for a room.
	ListByRoom(ctx context.Context, roomID string) ([]*models.Invitation, error)
}

// NotificationStore defines operations for notification records.
type NotificationStore interface {
	// Create persists a notification with read=false.
	Create(ctx context.Context, n *models.Notification) error
	// ListByRecipient retrieves a recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*models.Notification, error)
	// MarkRead flags a notification as read. Scoped to the recipient so
	// users cannot touch each other's records.
	MarkRead(ctx context.Context, id, recipientID string) error
}

// PostStore defines the post operations the room subsystem needs.
type PostStore interface {
	// Create persists a post.
	Create(ctx context.Context, p *models.Post) error
	// Get retrieves a post by ID. Returns nil, nil when absent.
	Get(ctx context.Context, id string) (*models.Post, error)
	// SetDiscussionRoom records the post's discussion room back-reference.
	SetDiscussionRoom(ctx context.Context, postID, roomID string) error
}

// ProfileStore defines the profile operations the room subsystem needs.
type ProfileStore interface {
	// Create persists a profile with a hashed password.
	Create(ctx context.Context, p *models.Profile, password string) error
	// GetByID retrieves a profile by ID. Returns nil, nil when absent.
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	// GetByEmail retrieves a profile by email. Returns nil, nil when absent.
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	// Authenticate verifies credentials and returns the profile.
	Authenticate(ctx context.Context, email, password string) (*models.Profile, error)
	// Missing returns the subset of ids that have no profile.
	Missing(ctx context.Context, ids []string) ([]string, error)
}

// WorkflowStore defines operations for workflow boards.
type WorkflowStore interface {
	// Create persists a workflow.
	Create(ctx context.Context, w *models.Workflow) error
	// Get retrieves a workflow by ID. Returns nil, nil when absent.
	Get(ctx context.Context, id string) (*models.Workflow, error)
	// ListByUser retrieves workflows the user participates in.
	ListByUser(ctx context.Context, userID string) ([]*models.Workflow, error)
	// UpdateTask upserts a single task and returns the updated workflow.
	UpdateTask(ctx context.Context, workflowID string, task models.Task) (*models.Workflow, error)
}

// Store is the main interface for record store operations.
type Store interface {
	// Rooms returns the RoomStore for room record operations.
	Rooms() RoomStore
	// Memberships returns the MembershipStore for role operations.
	Memberships() MembershipStore
	// Invitations returns the InvitationStore for invitation operations.
	Invitations() InvitationStore
	// Notifications returns the NotificationStore for notification operations.
	Notifications() NotificationStore
	// Posts returns the PostStore for post link operations.
	Posts() PostStore
	// Profiles returns the ProfileStore for profile operations.
	Profiles() ProfileStore
	// Workflows returns the WorkflowStore for workflow operations.
	Workflows() WorkflowStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
