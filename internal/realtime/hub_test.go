package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/scholarsync/collab-plane/pkg/config"
)

func testHub(auth Authorizer) *Hub {
	return NewHub(auth, config.RealtimeConfig{
		WriteTimeout: time.Second,
		PingInterval: 50 * time.Millisecond,
		SendBuffer:   8,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// dial connects a test client for userID against a hub.
func dial(t *testing.T, hub *Hub, userID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, userID)
	}))
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dialing hub: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

// readMessage reads frames until a non-error event arrives or the
// deadline passes.
func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("reading message: %v", err)
		}
		return msg
	}
}

func waitForCount(t *testing.T, hub *Hub, address string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(address) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("address %s count = %d, want %d", address, hub.ClientCount(address), want)
}

func TestEmitToUser(t *testing.T) {
	hub := testHub(nil)
	conn, done := dial(t, hub, "alice")
	defer done()

	waitForCount(t, hub, UserAddress("alice"), 1)
	hub.EmitToUser("alice", "notification", map[string]string{"hello": "world"})

	msg := readMessage(t, conn)
	if msg.Event != "notification" || msg.Address != UserAddress("alice") {
		t.Errorf("message = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["hello"] != "world" {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestEmitReachesOnlySubscribers(t *testing.T) {
	hub := testHub(nil)
	aliceConn, aliceDone := dial(t, hub, "alice")
	defer aliceDone()
	_, bobDone := dial(t, hub, "bob")
	defer bobDone()

	waitForCount(t, hub, UserAddress("alice"), 1)
	waitForCount(t, hub, UserAddress("bob"), 1)

	hub.EmitToUser("alice", "ping-alice", nil)
	msg := readMessage(t, aliceConn)
	if msg.Event != "ping-alice" {
		t.Errorf("alice got %+v", msg)
	}
	if hub.ClientCount(UserAddress("bob")) != 1 {
		t.Error("bob should still be connected and unbothered")
	}
}

func TestJoinAuthorization(t *testing.T) {
	hub := testHub(AuthorizerFunc(func(userID, address string) bool {
		return address == RoomAddress("allowed")
	}))
	conn, done := dial(t, hub, "alice")
	defer done()
	waitForCount(t, hub, UserAddress("alice"), 1)

	join := func(address string) {
		t.Helper()
		data, _ := json.Marshal(map[string]string{"action": "join", "address": address})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			t.Fatalf("writing join: %v", err)
		}
	}

	join(RoomAddress("allowed"))
	waitForCount(t, hub, RoomAddress("allowed"), 1)

	join(RoomAddress("forbidden"))
	msg := readMessage(t, conn)
	if msg.Event != "error" {
		t.Errorf("expected error frame for refused join, got %+v", msg)
	}
	if hub.ClientCount(RoomAddress("forbidden")) != 0 {
		t.Error("refused join still subscribed the client")
	}

	hub.Emit(RoomAddress("allowed"), "room-event", nil)
	msg = readMessage(t, conn)
	if msg.Event != "room-event" {
		t.Errorf("subscribed room event = %+v", msg)
	}
}

// A client disconnecting while an emit is in flight must not crash the
// emitter: the emit snapshots subscribers before the disconnect closes
// the send channel, so the late send has to land on a closed client
// without panicking.
func TestEmitSurvivesConcurrentDisconnect(t *testing.T) {
	hub := testHub(nil)

	for i := 0; i < 200; i++ {
		c := &Client{
			hub:    hub,
			userID: "alice",
			send:   make(chan []byte, 1),
			joined: make(map[string]struct{}),
		}
		hub.join(c, UserAddress("alice"))

		done := make(chan struct{})
		go func() {
			hub.disconnect(c)
			close(done)
		}()
		hub.EmitToUser("alice", "notification", nil)
		<-done

		if got := hub.ClientCount(UserAddress("alice")); got != 0 {
			t.Fatalf("client count after disconnect = %d, want 0", got)
		}
	}
}

func TestSendAfterCloseIsSwallowed(t *testing.T) {
	hub := testHub(nil)
	c := &Client{
		hub:    hub,
		userID: "alice",
		send:   make(chan []byte, 1),
		joined: make(map[string]struct{}),
	}
	hub.join(c, UserAddress("alice"))
	hub.disconnect(c)

	// The closed client reports delivery so the emitter does not treat
	// it as slow and disconnect it a second time.
	if !c.trySend([]byte(`{}`)) {
		t.Error("trySend on a closed client = false, want true")
	}
	c.sendError("late error frame")
}

func TestDisconnectCleansAddresses(t *testing.T) {
	hub := testHub(nil)
	conn, done := dial(t, hub, "alice")
	waitForCount(t, hub, UserAddress("alice"), 1)

	conn.Close()
	waitForCount(t, hub, UserAddress("alice"), 0)
	done()

	// Emitting into the void must not panic or block.
	hub.EmitToUser("alice", "late", nil)
}
