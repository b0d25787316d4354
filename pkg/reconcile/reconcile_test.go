package reconcile

import (
	"reflect"
	"testing"

	"chat-core/pkg/models"
)

func msg(id, from, to string, status models.Status, ts int64) models.Message {
	return models.Message{
		ID:        id,
		From:      from,
		To:        to,
		Text:      "hello " + id,
		Timestamp: ts,
		Status:    status,
	}
}

func TestStatusUpgrade(t *testing.T) {
	// Scenario A: same timestamp, remote carries the higher status.
	local := []models.Message{msg("m1", "u1", "u2", models.StatusSent, 100)}
	remote := []models.Message{msg("m1", "u1", "u2", models.StatusDelivered, 100)}

	got := Reconcile(local, remote)
	if len(got) != 1 {
		t.Fatalf("expected 1 message, got %d", len(got))
	}
	if got[0].Status != models.StatusDelivered {
		t.Errorf("status = %q, want %q", got[0].Status, models.StatusDelivered)
	}
}

func TestLaterWriteBeatsHigherStatus(t *testing.T) {
	// A strictly later lower-ranked write wins over an older read.
	local := []models.Message{msg("m1", "u1", "u2", models.StatusRead, 100)}
	remote := []models.Message{msg("m1", "u1", "u2", models.StatusSent, 200)}

	got := Reconcile(local, remote)
	if got[0].Status != models.StatusSent {
		t.Errorf("status = %q, want %q (later write wins)", got[0].Status, models.StatusSent)
	}
	if got[0].Timestamp != 200 {
		t.Errorf("timestamp = %d, want 200", got[0].Timestamp)
	}
}

func TestMonotonicReadAtEqualTimestamp(t *testing.T) {
	// At equal timestamps read never downgrades.
	local := []models.Message{msg("m1", "u1", "u2", models.StatusRead, 100)}
	remote := []models.Message{msg("m1", "u1", "u2", models.StatusDelivered, 100)}

	got := Reconcile(local, remote)
	if got[0].Status != models.StatusRead {
		t.Errorf("status = %q, want %q", got[0].Status, models.StatusRead)
	}
}

func TestIdempotence(t *testing.T) {
	local := []models.Message{
		msg("m1", "u1", "u2", models.StatusSent, 100),
		msg("m2", "u2", "u1", models.StatusRead, 150),
		msg("m4", "u1", "u2", models.StatusSending, 400),
	}
	remote := []models.Message{
		msg("m1", "u1", "u2", models.StatusDelivered, 100),
		msg("m2", "u2", "u1", models.StatusDelivered, 250),
		msg("m3", "u2", "u1", models.StatusSent, 300),
	}

	once := Reconcile(local, remote)
	twice := Reconcile(once, remote)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("reconcile is not idempotent:\n once: %+v\ntwice: %+v", once, twice)
	}
}

func TestDedupByID(t *testing.T) {
	// Scenario B: optimistic append plus router echo of the same group
	// message collapse to one entry.
	optimistic := msg("g1", "u1", "", models.StatusSending, 500)
	optimistic.GroupID = "grp1"
	echo := msg("g1", "u1", "", models.StatusSent, 500)
	echo.GroupID = "grp1"

	got := Reconcile([]models.Message{optimistic}, []models.Message{echo})
	if len(got) != 1 {
		t.Fatalf("expected 1 entry after echo dedup, got %d", len(got))
	}
	if got[0].Status != models.StatusSent {
		t.Errorf("status = %q, want %q", got[0].Status, models.StatusSent)
	}

	seen := map[string]bool{}
	for _, m := range got {
		if seen[m.ID] {
			t.Errorf("duplicate id %q in reconciled set", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestSoftDeletePropagates(t *testing.T) {
	// Scenario C: peer B's cache has content, the fetched copy is
	// deleted. The merged entry is deleted with cleared content.
	local := []models.Message{msg("m7", "u1", "u2", models.StatusDelivered, 100)}
	deleted := msg("m7", "u1", "u2", models.StatusDelivered, 100)
	deleted.IsDeleted = true
	deleted.DeletedAt = 900
	deleted.Text = "should not survive"

	got := Reconcile(local, []models.Message{deleted})
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}
	if !got[0].IsDeleted {
		t.Error("expected isDeleted=true")
	}
	if got[0].Text != "" || len(got[0].Attachments) != 0 {
		t.Errorf("deleted message still has content: %+v", got[0])
	}
	if got[0].DeletedAt != 900 {
		t.Errorf("deletedAt = %d, want 900", got[0].DeletedAt)
	}
}

func TestDeleteStickyFromLocalSide(t *testing.T) {
	del := msg("m7", "u1", "u2", models.StatusDelivered, 100)
	del.IsDeleted = true
	del.DeletedAt = 700
	remote := []models.Message{msg("m7", "u1", "u2", models.StatusDelivered, 100)}

	got := Reconcile([]models.Message{del}, remote)
	if !got[0].IsDeleted || got[0].DeletedAt != 700 {
		t.Errorf("local deletion lost on reconcile: %+v", got[0])
	}
}

func TestOrdering(t *testing.T) {
	local := []models.Message{
		msg("b", "u1", "u2", models.StatusSent, 300),
		msg("a", "u1", "u2", models.StatusSent, 100),
	}
	remote := []models.Message{
		msg("c", "u2", "u1", models.StatusSent, 200),
	}

	got := Reconcile(local, remote)
	for i := 1; i < len(got); i++ {
		if got[i-1].Timestamp > got[i].Timestamp {
			t.Fatalf("log not sorted by timestamp: %+v", got)
		}
	}
	if got[0].ID != "a" || got[1].ID != "c" || got[2].ID != "b" {
		t.Errorf("unexpected order: %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestCorruptEntriesDiscarded(t *testing.T) {
	blank := models.Message{ID: "x", From: "u1", To: "u2", Timestamp: 100, Status: models.StatusSent}
	noID := msg("", "u1", "u2", models.StatusSent, 100)

	got := Reconcile([]models.Message{blank, noID}, nil)
	if len(got) != 0 {
		t.Errorf("expected corrupt entries to be dropped, got %+v", got)
	}
}

func TestRemoteFieldsAuthoritative(t *testing.T) {
	local := msg("m1", "u1", "u2", models.StatusSent, 100)
	local.Text = "local draft"
	remote := msg("m1", "u1", "u2", models.StatusSent, 100)
	remote.Text = "server copy"
	remote.Attachments = []models.Attachment{{Name: "a.png", URL: "/uploads/a.png", Type: "image/png", Size: 10}}

	got := Reconcile([]models.Message{local}, []models.Message{remote})
	if got[0].Text != "server copy" {
		t.Errorf("text = %q, want server copy", got[0].Text)
	}
	if len(got[0].Attachments) != 1 {
		t.Errorf("attachments not taken from remote: %+v", got[0])
	}
}

func TestRemoteOnlyInserted(t *testing.T) {
	remote := []models.Message{msg("m9", "u2", "u1", models.StatusSent, 50)}
	got := Reconcile(nil, remote)
	if len(got) != 1 || got[0].ID != "m9" {
		t.Fatalf("remote-only entry not inserted: %+v", got)
	}
}
