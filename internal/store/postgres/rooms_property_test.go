package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/scholarsync/collab-plane/internal/models"
)

func testRoom(kind models.RoomKind, participants ...string) *models.Room {
	room := &models.Room{
		ID:           uuid.New().String(),
		Kind:         kind,
		CreatedBy:    participants[0],
		Participants: participants,
		IsActive:     true,
		Settings:     models.RoomSettings{AllowMemberInvite: true},
	}
	if kind != models.RoomKindDirect {
		room.Name = "test room"
		room.Admins = []string{participants[0]}
	}
	return room
}

func TestRoomStoreRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()
	store := &RoomStore{db: db, logger: slog.Default()}

	room := testRoom(models.RoomKindResearch, "u1", "u2")
	room.Description = "quantum computing"
	if err := store.Create(ctx, room); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing room")
	}
	if got.Kind != models.RoomKindResearch || got.Name != "test room" || got.Description != "quantum computing" {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.ChannelRef != "" {
		t.Errorf("new room should have empty channel ref, got %q", got.ChannelRef)
	}

	if err := store.SetChannelRef(ctx, room.ID, "research_"+room.ID); err != nil {
		t.Fatalf("SetChannelRef: %v", err)
	}
	if err := store.AddParticipant(ctx, room.ID, "u3"); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	// Adding twice must not duplicate.
	if err := store.AddParticipant(ctx, room.ID, "u3"); err != nil {
		t.Fatalf("AddParticipant repeat: %v", err)
	}

	got, err = store.Get(ctx, room.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.ChannelRef != "research_"+room.ID {
		t.Errorf("channel ref = %q", got.ChannelRef)
	}
	if len(got.Participants) != 3 {
		t.Errorf("participants = %v, want 3 entries", got.Participants)
	}

	if err := store.Deactivate(ctx, room.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	rooms, err := store.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("deactivated room still listed: %v", rooms)
	}
}

// Property: for any distinct pair of users, at most one active direct
// room can be created; the second insert fails and FindDirectByPair
// resolves to the first, regardless of argument order.
func TestDirectRoomPairUniquenessProperty(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()
	store := &RoomStore{db: db, logger: slog.Default()}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	genUserID := gen.Identifier().SuchThat(func(s string) bool { return len(s) > 0 })

	properties.Property("one active direct room per pair", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			// Namespace users per iteration so runs do not collide.
			suffix := uuid.New().String()[:8]
			userA, userB := a+"_"+suffix, b+"_"+suffix

			first := testRoom(models.RoomKindDirect, userA, userB)
			if err := store.Create(ctx, first); err != nil {
				return false
			}

			second := testRoom(models.RoomKindDirect, userB, userA)
			err := store.Create(ctx, second)
			if !errors.Is(err, ErrDuplicateDirectRoom) {
				return false
			}

			found, err := store.FindDirectByPair(ctx, userB, userA)
			return err == nil && found != nil && found.ID == first.ID
		},
		genUserID,
		genUserID,
	))

	properties.TestingRun(t)
}

func TestMembershipReverseIndex(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()
	rooms := &RoomStore{db: db, logger: slog.Default()}
	memberships := &MembershipStore{db: db, logger: slog.Default()}

	room := testRoom(models.RoomKindResearch, "u1", "u2")
	if err := rooms.Create(ctx, room); err != nil {
		t.Fatalf("Create room: %v", err)
	}

	for _, m := range []*models.Membership{
		{RoomID: room.ID, UserID: "u1", Role: models.RoleAdmin},
		{RoomID: room.ID, UserID: "u2", Role: models.RoleMember},
	} {
		if err := memberships.Add(ctx, m); err != nil {
			t.Fatalf("Add membership: %v", err)
		}
	}

	forU1, err := memberships.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(forU1) != 1 || forU1[0].RoomID != room.ID || forU1[0].Role != models.RoleAdmin {
		t.Errorf("u1 reverse index = %+v", forU1)
	}

	// Role upgrade is an upsert, not a second row.
	if err := memberships.Add(ctx, &models.Membership{RoomID: room.ID, UserID: "u2", Role: models.RoleModerator}); err != nil {
		t.Fatalf("Add upgrade: %v", err)
	}
	m, err := memberships.Get(ctx, room.ID, "u2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m == nil || m.Role != models.RoleModerator {
		t.Errorf("u2 role = %+v, want moderator", m)
	}
}
