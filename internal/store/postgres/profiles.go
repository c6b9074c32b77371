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
	"golang.org/x/crypto/bcrypt"
)

// ProfileStore implements store.ProfileStore using PostgreSQL.
type ProfileStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *ProfileStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Create persists a profile with a bcrypt-hashed password.
func (s *ProfileStore) Create(ctx context.Context, p *models.Profile, password string) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	query := `
		INSERT INTO profiles (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = s.conn().ExecContext(ctx, query, p.ID, p.Email, p.DisplayName, string(hash), p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID.
func (s *ProfileStore) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	return s.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail retrieves a profile by email.
func (s *ProfileStore) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	return s.get(ctx, `WHERE email = $1`, email)
}

func (s *ProfileStore) get(ctx context.Context, where string, arg any) (*models.Profile, error) {
	query := `SELECT id, email, display_name, created_at FROM profiles ` + where

	var p models.Profile
	err := s.conn().QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Email, &p.DisplayName, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return &p, nil
}

// Authenticate verifies credentials and returns the profile.
func (s *ProfileStore) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	query := `SELECT id, email, display_name, password_hash, created_at FROM profiles WHERE email = $1`

	var p models.Profile
	var hash string
	err := s.conn().QueryRowContext(ctx, query, email).Scan(
		&p.ID, &p.Email, &p.DisplayName, &hash, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &p, nil
}

// Missing returns the subset of ids that have no profile.
func (s *ProfileStore) Missing(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT candidate
		FROM unnest($1::text[]) AS candidate
		WHERE candidate NOT IN (SELECT id FROM profiles WHERE id = ANY($1))`

	rows, err := s.conn().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying missing profiles: %w", err)
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning missing profile id: %w", err)
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}
