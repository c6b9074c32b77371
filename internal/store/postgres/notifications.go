package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/scholarsync/collab-plane/internal/models"
)

// NotificationStore implements store.NotificationStore using PostgreSQL.
type NotificationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *NotificationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a notification with read=false.
func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Read = false

	query := `
		INSERT INTO notifications (id, recipient_id, type, payload, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	_, err := s.conn().ExecContext(ctx, query,
		n.ID,
		n.RecipientID,
		string(n.Type),
		[]byte(n.Payload),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// ListByRecipient retrieves a recipient's notifications, newest first.
func (s *NotificationStore) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, type, payload, read, created_at
		FROM notifications
		WHERE recipient_id = $1`
	if unreadOnly {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		var typ string
		var payload []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &typ, &payload, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Type = models.NotificationType(typ)
		n.Payload = payload
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// MarkRead flags a notification as read, scoped to the recipient.
func (s *NotificationStore) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`

	res, err := s.conn().ExecContext(ctx, query, id, recipientID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
