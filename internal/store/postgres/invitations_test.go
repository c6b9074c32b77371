package postgres

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/scholarsync/collab-plane/internal/models"
)

func TestInvitationOnePendingPerPair(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()
	rooms := &RoomStore{db: db, logger: slog.Default()}
	invitations := &InvitationStore{db: db, logger: slog.Default()}

	room := testRoom(models.RoomKindGroup, "u1", "u2", "u3")
	if err := rooms.Create(ctx, room); err != nil {
		t.Fatalf("Create room: %v", err)
	}

	first := &models.Invitation{
		RoomID:        room.ID,
		RoomName:      room.Name,
		InvitedUserID: "u4",
		SenderID:      "u1",
	}
	if err := invitations.Create(ctx, first); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The partial unique index rejects a second pending invitation for
	// the same (room, user) pair.
	dup := &models.Invitation{
		RoomID:        room.ID,
		RoomName:      room.Name,
		InvitedUserID: "u4",
		SenderID:      "u2",
	}
	if err := invitations.Create(ctx, dup); !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("duplicate pending create err = %v, want ErrDuplicateKey", err)
	}

	// Cancelling frees the slot for a new pending invitation.
	now := time.Now().UTC()
	if err := invitations.SetStatus(ctx, first.ID, models.InvitationStatusPending, models.InvitationStatusCancelled, &now); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := invitations.Create(ctx, dup); err != nil {
		t.Fatalf("Create after cancel: %v", err)
	}

	pending, err := invitations.FindPending(ctx, room.ID, "u4")
	if err != nil {
		t.Fatalf("FindPending: %v", err)
	}
	if pending == nil || pending.ID != dup.ID {
		t.Errorf("FindPending = %+v, want %s", pending, dup.ID)
	}
}

func TestInvitationSetStatusAndDelete(t *testing.T) {
	db := setupTestDB(t)
	defer cleanupTestDB(t, db)

	ctx := context.Background()
	rooms := &RoomStore{db: db, logger: slog.Default()}
	invitations := &InvitationStore{db: db, logger: slog.Default()}

	room := testRoom(models.RoomKindGroup, "u1", "u2", "u3")
	if err := rooms.Create(ctx, room); err != nil {
		t.Fatalf("Create room: %v", err)
	}

	inv := &models.Invitation{RoomID: room.ID, RoomName: room.Name, InvitedUserID: "u5", SenderID: "u1"}
	if err := invitations.Create(ctx, inv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().UTC()
	if err := invitations.SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusAccepted, &now); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// A second transition expecting pending lost the race and must not
	// overwrite the accepted status.
	if err := invitations.SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusCancelled, nil); !errors.Is(err, ErrStaleStatus) {
		t.Errorf("stale transition err = %v, want ErrStaleStatus", err)
	}

	got, err := invitations.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.InvitationStatusAccepted || got.RespondedAt == nil {
		t.Errorf("after accept: %+v", got)
	}

	if err := invitations.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = invitations.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if got != nil {
		t.Errorf("invitation still present after delete: %+v", got)
	}

	if err := invitations.SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusCancelled, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetStatus on deleted = %v, want ErrNotFound", err)
	}
}
