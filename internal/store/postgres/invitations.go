package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsync/collab-plane/internal/models"
)

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const invitationColumns = `
	id, room_id, room_name, invited_user_id, sender_id, status, created_at, responded_at`

// Create persists a new invitation.
func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}

	query := `
		INSERT INTO invitations (id, room_id, room_name, invited_user_id, sender_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.conn().ExecContext(ctx, query,
		inv.ID,
		inv.RoomID,
		inv.RoomName,
		inv.InvitedUserID,
		inv.SenderID,
		string(inv.Status),
		inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting invitation: %w", err)
	}
	return nil
}

// Get retrieves an invitation by ID.
func (s *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT` + invitationColumns + ` FROM invitations WHERE id = $1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation: %w", err)
	}
	return inv, nil
}

// FindPending returns the pending invitation for (roomID, userID), or nil.
func (s *InvitationStore) FindPending(ctx context.Context, roomID, userID string) (*models.Invitation, error) {
	query := `
		SELECT` + invitationColumns + `
		FROM invitations
		WHERE room_id = $1 AND invited_user_id = $2 AND status = 'pending'
		LIMIT 1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, roomID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending invitation: %w", err)
	}
	return inv, nil
}

// SetStatus transitions an invitation's status. The UPDATE carries the
// expected current status so two racing transitions cannot both apply;
// the loser sees ErrStaleStatus.
func (s *InvitationStore) SetStatus(ctx context.Context, id string, from, to models.InvitationStatus, respondedAt *time.Time) error {
	query := `UPDATE invitations SET status = $3, responded_at = $4 WHERE id = $1 AND status = $2`

	var ts sql.NullTime
	if respondedAt != nil {
		ts = sql.NullTime{Time: *respondedAt, Valid: true}
	}

	res, err := s.conn().ExecContext(ctx, query, id, string(from), string(to), ts)
	if err != nil {
		return fmt.Errorf("updating invitation status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.conn().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM invitations WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("checking invitation existence: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrStaleStatus
	}
	return nil
}

// Delete hard-removes an invitation.
func (s *InvitationStore) Delete(ctx context.Context, id string) error {
	res, err := s.conn().ExecContext(ctx, `DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByInvitee retrieves invitations addressed to a user, newest first.
func (s *InvitationStore) ListByInvitee(ctx context.Context, userID string) ([]*models.Invitation, error) {
	query := `
		SELECT` + invitationColumns + `
		FROM invitations
		WHERE invited_user_id = $1
		ORDER BY created_at DESC`

	return s.list(ctx, query, userID)
}

// ListByRoom retrieves invitations for a room, newest first.
func (s *InvitationStore) ListByRoom(ctx context.Context, roomID string) ([]*models.Invitation, error) {
	query := `
		SELECT` + invitationColumns + `
		FROM invitations
		WHERE room_id = $1
		ORDER BY created_at DESC`

	return s.list(ctx, query, roomID)
}

func (s *InvitationStore) list(ctx context.Context, query string, arg any) ([]*models.Invitation, error) {
	rows, err := s.conn().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("querying invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

func scanInvitation(row scanner) (*models.Invitation, error) {
	var inv models.Invitation
	var status string
	var respondedAt sql.NullTime

	err := row.Scan(
		&inv.ID,
		&inv.RoomID,
		&inv.RoomName,
		&inv.InvitedUserID,
		&inv.SenderID,
		&status,
		&inv.CreatedAt,
		&respondedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = models.InvitationStatus(status)
	if respondedAt.Valid {
		inv.RespondedAt = &respondedAt.Time
	}
	return &inv, nil
}
