package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/scholarsync/collab-plane/internal/apperr"
	"github.com/scholarsync/collab-plane/internal/models"
	"github.com/scholarsync/collab-plane/internal/store/memory"
)

type recordingPusher struct {
	mu     sync.Mutex
	events []struct {
		UserID string
		Event  string
	}
}

func (p *recordingPusher) EmitToUser(userID, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, struct {
		UserID string
		Event  string
	}{userID, event})
}

func (p *recordingPusher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func waitForPush(t *testing.T, p *recordingPusher, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if p.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pushes = %d, want %d", p.count(), want)
}

func TestNotifyWritesThenPushes(t *testing.T) {
	st := memory.New()
	pusher := &recordingPusher{}
	svc := NewService(st, pusher, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer svc.Close()
	ctx := context.Background()

	payload := models.RoomInvitePayload{InvitationID: "i1", RoomID: "r1", SenderID: "alice"}
	if err := svc.Notify(ctx, "bob", models.NotificationRoomInvite, payload); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	// Durable record first.
	ns, err := svc.List(ctx, "bob", false)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ns) != 1 || ns[0].Read {
		t.Fatalf("notifications = %+v, want one unread", ns)
	}
	var got models.RoomInvitePayload
	if err := json.Unmarshal(ns[0].Payload, &got); err != nil || got.InvitationID != "i1" {
		t.Errorf("payload round trip = %+v, err %v", got, err)
	}

	// Then the async push.
	waitForPush(t, pusher, 1)
	if pusher.events[0].UserID != "bob" || pusher.events[0].Event != EventNotification {
		t.Errorf("push = %+v", pusher.events[0])
	}
}

func TestNotifyWithoutPusher(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer svc.Close()
	ctx := context.Background()

	if err := svc.Notify(ctx, "bob", models.NotificationRoomAdded, models.RoomAddedPayload{RoomID: "r1"}); err != nil {
		t.Fatalf("Notify without pusher: %v", err)
	}
	ns, _ := svc.List(ctx, "bob", true)
	if len(ns) != 1 {
		t.Errorf("unread = %d, want 1", len(ns))
	}
}

func TestMarkReadIsRecipientScoped(t *testing.T) {
	st := memory.New()
	svc := NewService(st, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer svc.Close()
	ctx := context.Background()

	if err := svc.Notify(ctx, "bob", models.NotificationRoomAdded, models.RoomAddedPayload{RoomID: "r1"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	ns, _ := svc.List(ctx, "bob", false)
	id := ns[0].ID

	// Another user cannot touch bob's record.
	if err := svc.MarkRead(ctx, id, "mallory"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("cross-user mark kind = %v, want not found", apperr.KindOf(err))
	}
	if err := svc.MarkRead(ctx, id, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, _ := svc.List(ctx, "bob", true)
	if len(unread) != 0 {
		t.Errorf("unread after mark = %d, want 0", len(unread))
	}
	all, _ := svc.List(ctx, "bob", false)
	if len(all) != 1 || !all[0].Read {
		t.Errorf("all notifications = %+v, want one read", all)
	}
}
