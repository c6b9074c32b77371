package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scholarsync/collab-plane/internal/models"
)

func TestInvitationSetStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	st := New()

	inv := &models.Invitation{
		RoomID:        "room-1",
		RoomName:      "reading group",
		InvitedUserID: "u2",
		SenderID:      "u1",
		Status:        models.InvitationStatusPending,
	}
	if err := st.Invitations().Create(ctx, inv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().UTC()
	if err := st.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusAccepted, &now); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	// The losing half of a race expects pending and must not clobber
	// the accepted status.
	err := st.Invitations().SetStatus(ctx, inv.ID, models.InvitationStatusPending, models.InvitationStatusCancelled, nil)
	if !errors.Is(err, ErrStaleStatus) {
		t.Fatalf("stale transition err = %v, want ErrStaleStatus", err)
	}

	got, err := st.Invitations().Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.InvitationStatusAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}

	if err := st.Invitations().SetStatus(ctx, "missing", models.InvitationStatusPending, models.InvitationStatusCancelled, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing invitation err = %v, want ErrNotFound", err)
	}
}
