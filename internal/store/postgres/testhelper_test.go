package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
)

// getTestDSN returns the test database DSN, or "" when unset.
func getTestDSN() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// setupTestDB opens the test database and applies the schema. Tests are
// skipped when TEST_DATABASE_URL is not set.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := getTestDSN()
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("failed to open database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("failed to ping database: %v", err)
	}

	if err := Migrate(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	return db
}

// cleanupTestDB removes test data and closes the connection.
func cleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()
	db.Exec("DELETE FROM notifications")
	db.Exec("DELETE FROM invitations")
	db.Exec("DELETE FROM room_memberships")
	db.Exec("DELETE FROM rooms")
	db.Exec("DELETE FROM workflows")
	db.Exec("DELETE FROM posts")
	db.Exec("DELETE FROM profiles")
	db.Close()
}
