// Package postgres provides the PostgreSQL implementation of the store interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/scholarsync/collab-plane/internal/store"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger

	rooms         *RoomStore
	memberships   *MembershipStore
	invitations   *InvitationStore
	notifications *NotificationStore
	posts         *PostStore
	profiles      *ProfileStore
	workflows     *WorkflowStore
}

// Config holds PostgreSQL connection configuration.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(dsn string) *Config {
	return &Config{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// NewPostgresStore creates a new PostgreSQL store with the given configuration.
func NewPostgresStore(cfg *Config, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		logger: logger,
	}

	// Initialize sub-stores
	s.rooms = &RoomStore{db: db, logger: logger}
	s.memberships = &MembershipStore{db: db, logger: logger}
	s.invitations = &InvitationStore{db: db, logger: logger}
	s.notifications = &NotificationStore{db: db, logger: logger}
	s.posts = &PostStore{db: db, logger: logger}
	s.profiles = &ProfileStore{db: db, logger: logger}
	s.workflows = &WorkflowStore{db: db, logger: logger}

	logger.Info("connected to PostgreSQL database")
	return s, nil
}

// Rooms returns the RoomStore.
func (s *PostgresStore) Rooms() store.RoomStore {
	return s.rooms
}

// Memberships returns the MembershipStore.
func (s *PostgresStore) Memberships() store.MembershipStore {
	return s.memberships
}

// Invitations returns the InvitationStore.
func (s *PostgresStore) Invitations() store.InvitationStore {
	return s.invitations
}

// Notifications returns the NotificationStore.
func (s *PostgresStore) Notifications() store.NotificationStore {
	return s.notifications
}

// Posts returns the PostStore.
func (s *PostgresStore) Posts() store.PostStore {
	return s.posts
}

// Profiles returns the ProfileStore.
func (s *PostgresStore) Profiles() store.ProfileStore {
	return s.profiles
}

// Workflows returns the WorkflowStore.
func (s *PostgresStore) Workflows() store.WorkflowStore {
	return s.workflows
}

// WithTx executes the given function within a database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	// Create a transaction-scoped store
	txStore := &txStore{
		tx:     tx,
		logger: s.logger,
	}

	// Execute the function
	if err := fn(txStore); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to rollback transaction", "error", rbErr)
		}
		return err
	}

	// Commit the transaction
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	s.logger.Info("closing PostgreSQL connection")
	return s.db.Close()
}

// DB returns the underlying database connection.
// This is useful for components that need direct database access.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// txStore wraps a transaction and implements the Store interface.
type txStore struct {
	tx     *sql.Tx
	logger *slog.Logger

	rooms         *RoomStore
	memberships   *MembershipStore
	invitations   *InvitationStore
	notifications *NotificationStore
	posts         *PostStore
	profiles      *ProfileStore
	workflows     *WorkflowStore
}

func (s *txStore) Rooms() store.RoomStore {
	if s.rooms == nil {
		s.rooms = &RoomStore{tx: s.tx, logger: s.logger}
	}
	return s.rooms
}

func (s *txStore) Memberships() store.MembershipStore {
	if s.memberships == nil {
		s.memberships = &MembershipStore{tx: s.tx, logger: s.logger}
	}
	return s.memberships
}

func (s *txStore) Invitations() store.InvitationStore {
	if s.invitations == nil {
		s.invitations = &InvitationStore{tx: s.tx, logger: s.logger}
	}
	return s.invitations
}

func (s *txStore) Notifications() store.NotificationStore {
	if s.notifications == nil {
		s.notifications = &NotificationStore{tx: s.tx, logger: s.logger}
	}
	return s.notifications
}

func (s *txStore) Posts() store.PostStore {
	if s.posts == nil {
		s.posts = &PostStore{tx: s.tx, logger: s.logger}
	}
	return s.posts
}

func (s *txStore) Profiles() store.ProfileStore {
	if s.profiles == nil {
		s.profiles = &ProfileStore{tx: s.tx, logger: s.logger}
	}
	return s.profiles
}

func (s *txStore) Workflows() store.WorkflowStore {
	if s.workflows == nil {
		s.workflows = &WorkflowStore{tx: s.tx, logger: s.logger}
	}
	return s.workflows
}

func (s *txStore) WithTx(ctx context.Context, fn func(store.Store) error) error {
	// Already in a transaction, just execute the function
	return fn(s)
}

func (s *txStore) Ping(ctx context.Context) error {
	// The transaction is live, so the connection is too.
	return nil
}

func (s *txStore) Close() error {
	// No-op for transaction store
	return nil
}

// queryable is an interface that both *sql.DB and *sql.Tx implement.
type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
