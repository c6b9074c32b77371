package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/scholarsync/collab-plane/internal/models"
)

// RoomStore implements store.RoomStore using PostgreSQL.
type RoomStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *RoomStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const roomColumns = `
	id, kind, COALESCE(name, ''), COALESCE(description, ''), created_by,
	participants, admins, is_active, COALESCE(channel_ref, ''), post_links,
	allow_member_invite, allow_member_remove, is_public, created_at, updated_at`

// Create persists a new room record. For direct rooms the sorted pair
// key backs a partial unique index; a violation means a concurrent
// request already created the room for this pair.
func (s *RoomStore) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if room.CreatedAt.IsZero() {
		room.CreatedAt = now
	}
	room.UpdatedAt = room.CreatedAt

	var pairKey sql.NullString
	if room.Kind == models.RoomKindDirect && len(room.Participants) == 2 {
		pairKey = sql.NullString{
			String: models.DirectPairKey(room.Participants[0], room.Participants[1]),
			Valid:  true,
		}
	}

	query := `
		INSERT INTO rooms (
			id, kind, name, description, created_by, participants, admins,
			is_active, channel_ref, post_links, allow_member_invite,
			allow_member_remove, is_public, direct_pair_key, created_at, updated_at
		)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8,
		        NULLIF($9, ''), $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.conn().ExecContext(ctx, query,
		room.ID,
		string(room.Kind),
		room.Name,
		room.Description,
		room.CreatedBy,
		pq.Array(room.Participants),
		pq.Array(room.Admins),
		room.IsActive,
		room.ChannelRef,
		pq.Array(room.PostLinks),
		room.Settings.AllowMemberInvite,
		room.Settings.AllowMemberRemove,
		room.Settings.IsPublic,
		pairKey,
		room.CreatedAt,
		room.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDirectRoom
		}
		return fmt.Errorf("inserting room: %w", err)
	}

	return nil
}

// Get retrieves a room by ID.
func (s *RoomStore) Get(ctx context.Context, id string) (*models.Room, error) {
	query := `SELECT` + roomColumns + ` FROM rooms WHERE id = $1`

	room, err := scanRoom(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying room: %w", err)
	}
	return room, nil
}

// FindDirectByPair returns the oldest active direct room for the pair.
func (s *RoomStore) FindDirectByPair(ctx context.Context, userA, userB string) (*models.Room, error) {
	query := `
		SELECT` + roomColumns + `
		FROM rooms
		WHERE kind = 'direct' AND is_active AND direct_pair_key = $1
		ORDER BY created_at ASC
		LIMIT 1`

	room, err := scanRoom(s.conn().QueryRowContext(ctx, query, models.DirectPairKey(userA, userB)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying direct room: %w", err)
	}
	return room, nil
}

// ListByUser retrieves all active rooms the user participates in.
func (s *RoomStore) ListByUser(ctx context.Context, userID string) ([]*models.Room, error) {
	query := `
		SELECT` + roomColumns + `
		FROM rooms
		WHERE is_active AND $1 = ANY(participants)
		ORDER BY updated_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// SetChannelRef records the provisioned channel identifier.
func (s *RoomStore) SetChannelRef(ctx context.Context, id, channelRef string) error {
	query := `UPDATE rooms SET channel_ref = $2, updated_at = $3 WHERE id = $1`

	res, err := s.conn().ExecContext(ctx, query, id, channelRef, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("updating channel ref: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddParticipant appends a user to the room's participant set. Adding an
// existing participant is a no-op.
func (s *RoomStore) AddParticipant(ctx context.Context, roomID, userID string) error {
	query := `
		UPDATE rooms
		SET participants = array_append(participants, $2), updated_at = $3
		WHERE id = $1 AND NOT ($2 = ANY(participants))`

	_, err := s.conn().ExecContext(ctx, query, roomID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding participant: %w", err)
	}
	return nil
}

// LinkPost appends a post to the room's post links. Linking an already
// linked post is a no-op.
func (s *RoomStore) LinkPost(ctx context.Context, roomID, postID string) error {
	query := `
		UPDATE rooms
		SET post_links = array_append(post_links, $2), updated_at = $3
		WHERE id = $1 AND NOT ($2 = ANY(post_links))`

	_, err := s.conn().ExecContext(ctx, query, roomID, postID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("linking post: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a room.
func (s *RoomStore) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE rooms SET is_active = FALSE, updated_at = $2 WHERE id = $1`

	res, err := s.conn().ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivating room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(row scanner) (*models.Room, error) {
	var room models.Room
	var kind string

	err := row.Scan(
		&room.ID,
		&kind,
		&room.Name,
		&room.Description,
		&room.CreatedBy,
		pq.Array(&room.Participants),
		pq.Array(&room.Admins),
		&room.IsActive,
		&room.ChannelRef,
		pq.Array(&room.PostLinks),
		&room.Settings.AllowMemberInvite,
		&room.Settings.AllowMemberRemove,
		&room.Settings.IsPublic,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	room.Kind = models.RoomKind(kind)
	return &room, nil
}

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *MembershipStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Add records a participant's role in a room. Re-adding an existing
// membership updates the role in place.
func (s *MembershipStore) Add(ctx context.Context, m *models.Membership) error {
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO room_memberships (room_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (room_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	_, err := s.conn().ExecContext(ctx, query, m.RoomID, m.UserID, string(m.Role), m.JoinedAt)
	if err != nil {
		return fmt.Errorf("inserting membership: %w", err)
	}
	return nil
}

// Get retrieves a membership.
func (s *MembershipStore) Get(ctx context.Context, roomID, userID string) (*models.Membership, error) {
	query := `
		SELECT room_id, user_id, role, joined_at
		FROM room_memberships
		WHERE room_id = $1 AND user_id = $2`

	var m models.Membership
	var role string

	err := s.conn().QueryRowContext(ctx, query, roomID, userID).Scan(
		&m.RoomID, &m.UserID, &role, &m.JoinedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying membership: %w", err)
	}

	m.Role = models.MemberRole(role)
	return &m, nil
}

// ListByRoom retrieves all memberships of a room in join order.
func (s *MembershipStore) ListByRoom(ctx context.Context, roomID string) ([]*models.Membership, error) {
	query := `
		SELECT room_id, user_id, role, joined_at
		FROM room_memberships
		WHERE room_id = $1
		ORDER BY joined_at ASC`

	return s.list(ctx, query, roomID)
}

// ListByUser retrieves the reverse index of rooms the user belongs to.
func (s *MembershipStore) ListByUser(ctx context.Context, userID string) ([]*models.Membership, error) {
	query := `
		SELECT room_id, user_id, role, joined_at
		FROM room_memberships
		WHERE user_id = $1
		ORDER BY joined_at DESC`

	return s.list(ctx, query, userID)
}

func (s *MembershipStore) list(ctx context.Context, query string, arg any) ([]*models.Membership, error) {
	rows, err := s.conn().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.RoomID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		m.Role = models.MemberRole(role)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}
