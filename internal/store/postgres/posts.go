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

// PostStore implements store.PostStore using PostgreSQL.
type PostStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *PostStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a post.
func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO posts (id, author_id, content, discussion_room_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`

	_, err := s.conn().ExecContext(ctx, query,
		p.ID, p.AuthorID, p.Content, p.DiscussionRoomID, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// Get retrieves a post by ID.
func (s *PostStore) Get(ctx context.Context, id string) (*models.Post, error) {
	query := `
		SELECT id, author_id, content, COALESCE(discussion_room_id, ''), created_at
		FROM posts WHERE id = $1`

	var p models.Post
	err := s.conn().QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.AuthorID, &p.Content, &p.DiscussionRoomID, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying post: %w", err)
	}
	return &p, nil
}

// SetDiscussionRoom records the post's discussion room back-reference.
func (s *PostStore) SetDiscussionRoom(ctx context.Context, postID, roomID string) error {
	query := `UPDATE posts SET discussion_room_id = $2 WHERE id = $1`

	res, err := s.conn().ExecContext(ctx, query, postID, roomID)
	if err != nil {
		return fmt.Errorf("linking discussion room: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
