package handlers

import (
	"encoding/json"
	"testing"

	"chat-core/pkg/models"
)

type fakeConn struct{}

func (fakeConn) ReadMessage() (int, []byte, error) { return 0, nil, nil }
func (fakeConn) WriteMessage(int, []byte) error    { return nil }
func (fakeConn) Close() error                      { return nil }

func newTestClient(connID, userID string) *Client {
	return NewClient(connID, userID, fakeConn{})
}

// drain pulls every queued frame off a client's send channel.
func drain(t *testing.T, c *Client) []models.Frame {
	t.Helper()
	var out []models.Frame
	for {
		select {
		case raw := <-c.Send:
			var f models.Frame
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("bad frame on wire: %v", err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func events(frames []models.Frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Event
	}
	return out
}

func TestRouteDirectEchoAndCount(t *testing.T) {
	r := NewRoomRouter()
	sender := newTestClient("c1", "alice")
	recipient := newTestClient("c2", "bob")
	r.Add(sender)
	r.Add(recipient)

	msg := models.Message{ID: "m1", From: "alice", To: "bob", Text: "hi", Timestamp: 100, Status: models.StatusSent}
	delivered := r.RouteDirect(msg)
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}

	got := drain(t, recipient)
	if len(got) != 1 || got[0].Event != models.EventChatMessage {
		t.Fatalf("recipient frames = %v", events(got))
	}
	echo := drain(t, sender)
	if len(echo) != 1 || echo[0].Event != models.EventChatMessage {
		t.Fatalf("sender echo frames = %v", events(echo))
	}
}

func TestRouteDirectOfflineRecipient(t *testing.T) {
	r := NewRoomRouter()
	sender := newTestClient("c1", "alice")
	r.Add(sender)

	msg := models.Message{ID: "m1", From: "alice", To: "bob", Text: "hi", Timestamp: 100}
	if delivered := r.RouteDirect(msg); delivered != 0 {
		t.Fatalf("delivered = %d, want 0 for offline recipient", delivered)
	}
	// The sender still sees its own echo.
	if got := drain(t, sender); len(got) != 1 {
		t.Fatalf("sender echo frames = %v", events(got))
	}
}

func TestRouteGroupIncludesSender(t *testing.T) {
	r := NewRoomRouter()
	a := newTestClient("c1", "alice")
	b := newTestClient("c2", "bob")
	r.Add(a)
	r.Add(b)
	r.Join("g1", "c1")
	r.Join("g1", "c2")

	msg := models.Message{ID: "m1", From: "alice", GroupID: "g1", Text: "hey", Timestamp: 100}
	if delivered := r.RouteGroup(msg); delivered != 2 {
		t.Fatalf("delivered = %d, want 2", delivered)
	}

	for _, c := range []*Client{a, b} {
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != models.EventNewGroupMessage {
			t.Fatalf("frames for %s = %v", c.UserID, events(got))
		}
	}
}

func TestRouteTypingGroupExcludesTypist(t *testing.T) {
	r := NewRoomRouter()
	a := newTestClient("c1", "alice")
	b := newTestClient("c2", "bob")
	r.Add(a)
	r.Add(b)
	r.Join("g1", "c1")
	r.Join("g1", "c2")

	r.RouteTypingGroup(models.TypingGroup{GroupID: "g1", UserID: "alice"}, "c1")

	if got := drain(t, a); len(got) != 0 {
		t.Fatalf("typist received its own typing signal: %v", events(got))
	}
	got := drain(t, b)
	if len(got) != 1 || got[0].Event != models.EventUserTyping {
		t.Fatalf("frames = %v", events(got))
	}
}

func TestRouteDeletionReachesBothRooms(t *testing.T) {
	r := NewRoomRouter()
	a := newTestClient("c1", "alice")
	b := newTestClient("c2", "bob")
	r.Add(a)
	r.Add(b)

	r.RouteDeletion(models.DeleteRequest{MessageID: "m1", UserID1: "alice", UserID2: "bob"})

	for _, c := range []*Client{a, b} {
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != models.EventMessageDeleted {
			t.Fatalf("frames for %s = %v", c.UserID, events(got))
		}
	}
}

func TestRemoveClosesSendAndLeavesRooms(t *testing.T) {
	r := NewRoomRouter()
	a := newTestClient("c1", "alice")
	b := newTestClient("c2", "bob")
	r.Add(a)
	r.Add(b)
	r.Join("g1", "c1")
	r.Join("g1", "c2")

	r.Remove("c1")

	if _, open := <-a.Send; open {
		t.Fatalf("send channel should be closed after Remove")
	}
	if delivered := r.Emit("g1", models.EventUserTyping, models.TypingGroup{GroupID: "g1"}, ""); delivered != 1 {
		t.Fatalf("delivered = %d, want 1 after removal", delivered)
	}
}

func TestMultiTabDirectDelivery(t *testing.T) {
	r := NewRoomRouter()
	tab1 := newTestClient("c1", "bob")
	tab2 := newTestClient("c2", "bob")
	r.Add(tab1)
	r.Add(tab2)

	msg := models.Message{ID: "m1", From: "alice", To: "bob", Text: "hi", Timestamp: 100}
	if delivered := r.RouteDirect(msg); delivered != 2 {
		t.Fatalf("delivered = %d, want one per open tab", delivered)
	}
}
