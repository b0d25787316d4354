package unread

import (
	"testing"

	"chat-core/pkg/models"
)

func m(id, from, to string, status models.Status, ts int64) models.Message {
	return models.Message{ID: id, From: from, To: to, Text: "x", Timestamp: ts, Status: status}
}

func TestCount(t *testing.T) {
	// Scenario D: u1's unread count for u2 is u2's messages to u1 that
	// are not read yet.
	msgs := []models.Message{
		m("a", "u2", "u1", models.StatusDelivered, 100),
		m("b", "u2", "u1", models.StatusSent, 200),
		m("c", "u2", "u1", models.StatusRead, 300),
		m("d", "u1", "u2", models.StatusDelivered, 400), // outgoing, never counts
		m("e", "u3", "u1", models.StatusDelivered, 500),
	}

	counts := Count(msgs, "u1")
	if counts["u2"] != 2 {
		t.Errorf("unread[u2] = %d, want 2", counts["u2"])
	}
	if counts["u3"] != 1 {
		t.Errorf("unread[u3] = %d, want 1", counts["u3"])
	}
	if counts["u1"] != 0 {
		t.Errorf("unread[u1] = %d, want 0", counts["u1"])
	}
}

func TestCountIgnoresDeleted(t *testing.T) {
	del := m("a", "u2", "u1", models.StatusDelivered, 100)
	del.IsDeleted = true
	del.Text = ""

	counts := Count([]models.Message{del}, "u1")
	if counts["u2"] != 0 {
		t.Errorf("deleted message counted as unread: %d", counts["u2"])
	}
}

func TestCountDropsToZeroAfterRead(t *testing.T) {
	msgs := []models.Message{
		m("a", "u2", "u1", models.StatusRead, 100),
		m("b", "u2", "u1", models.StatusRead, 200),
	}
	if got := Count(msgs, "u1")["u2"]; got != 0 {
		t.Errorf("unread after read-receipt round-trip = %d, want 0", got)
	}
}

func TestOrder(t *testing.T) {
	peers := []Peer{
		{ID: "u2", DisplayName: "Bob"},
		{ID: "u3", DisplayName: "alice"},
		{ID: "u4", DisplayName: "Carol"},
		{ID: "u5", DisplayName: "dave"},
	}
	unread := map[string]int{"u4": 3, "u5": 1}
	online := map[string]bool{"u2": true}

	got := Order(peers, unread, online)

	want := []string{"u4", "u5", "u2", "u3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d] = %s, want %s (full: %+v)", i, got[i].ID, id, got)
		}
	}
}

func TestOrderNameTieBreak(t *testing.T) {
	peers := []Peer{
		{ID: "u2", DisplayName: "zoe"},
		{ID: "u3", DisplayName: "Anna"},
	}
	got := Order(peers, nil, nil)
	if got[0].ID != "u3" {
		t.Errorf("expected name-ascending tie break, got %+v", got)
	}
}

func TestOrderDoesNotMutateInput(t *testing.T) {
	peers := []Peer{{ID: "b", DisplayName: "b"}, {ID: "a", DisplayName: "a"}}
	Order(peers, nil, nil)
	if peers[0].ID != "b" {
		t.Error("input slice was reordered")
	}
}
