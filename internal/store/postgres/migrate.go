package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the full schema, written to be idempotent so it can run at
// every startup.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id VARCHAR(255) PRIMARY KEY,
	email VARCHAR(255) NOT NULL UNIQUE,
	display_name VARCHAR(255) NOT NULL DEFAULT '',
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS posts (
	id VARCHAR(255) PRIMARY KEY,
	author_id VARCHAR(255) NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	discussion_room_id VARCHAR(255),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rooms (
	id VARCHAR(255) PRIMARY KEY,
	kind VARCHAR(20) NOT NULL CHECK (kind IN ('direct', 'group', 'research')),
	name TEXT,
	description TEXT,
	created_by VARCHAR(255) NOT NULL,
	participants TEXT[] NOT NULL,
	admins TEXT[] NOT NULL DEFAULT '{}',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	channel_ref TEXT,
	post_links TEXT[] NOT NULL DEFAULT '{}',
	allow_member_invite BOOLEAN NOT NULL DEFAULT TRUE,
	allow_member_remove BOOLEAN NOT NULL DEFAULT FALSE,
	is_public BOOLEAN NOT NULL DEFAULT FALSE,
	direct_pair_key TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rooms_direct_pair
	ON rooms (direct_pair_key) WHERE kind = 'direct' AND is_active;
CREATE INDEX IF NOT EXISTS idx_rooms_participants
	ON rooms USING GIN (participants);

CREATE TABLE IF NOT EXISTS room_memberships (
	room_id VARCHAR(255) NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	user_id VARCHAR(255) NOT NULL,
	role VARCHAR(20) NOT NULL CHECK (role IN ('admin', 'moderator', 'member')),
	joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (room_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_room_memberships_user
	ON room_memberships (user_id);

CREATE TABLE IF NOT EXISTS invitations (
	id VARCHAR(255) PRIMARY KEY,
	room_id VARCHAR(255) NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
	room_name TEXT NOT NULL DEFAULT '',
	invited_user_id VARCHAR(255) NOT NULL,
	sender_id VARCHAR(255) NOT NULL,
	status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected', 'cancelled')),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	responded_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_invitations_one_pending
	ON invitations (room_id, invited_user_id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_invitations_invitee
	ON invitations (invited_user_id);

CREATE TABLE IF NOT EXISTS notifications (
	id VARCHAR(255) PRIMARY KEY,
	recipient_id VARCHAR(255) NOT NULL,
	type VARCHAR(40) NOT NULL,
	payload JSONB NOT NULL DEFAULT '{}',
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_notifications_recipient
	ON notifications (recipient_id, read);

CREATE TABLE IF NOT EXISTS workflows (
	id VARCHAR(255) PRIMARY KEY,
	name TEXT NOT NULL,
	participants TEXT[] NOT NULL DEFAULT '{}',
	tasks JSONB NOT NULL DEFAULT '[]',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_workflows_participants
	ON workflows USING GIN (participants);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
