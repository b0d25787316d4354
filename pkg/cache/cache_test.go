package cache

import (
	"path/filepath"
	"reflect"
	"testing"

	"chat-core/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRoundTrip(t *testing.T) {
	s := openTestStore(t)

	key := models.ConversationKey("u1", "u2")
	msgs := []models.Message{
		{ID: "m1", From: "u1", To: "u2", Text: "hi", Timestamp: 100, Status: models.StatusSent},
		{ID: "m2", From: "u2", To: "u1", Text: "hey", Timestamp: 200, Status: models.StatusDelivered,
			Attachments: []models.Attachment{{Name: "a.png", URL: "/uploads/a.png", Type: "image/png", Size: 42}}},
	}

	if err := s.SaveConversation(key, msgs); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	got, err := s.LoadConversation(key)
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if !reflect.DeepEqual(got, msgs) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", got, msgs)
	}
}

func TestMissingConversationIsEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadConversation(models.ConversationKey("u1", "u9"))
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty log for unknown key, got %+v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := openTestStore(t)
	key := models.GroupKey("grp1")

	first := []models.Message{{ID: "m1", From: "u1", GroupID: "grp1", Text: "a", Timestamp: 1, Status: models.StatusSent}}
	second := []models.Message{{ID: "m2", From: "u2", GroupID: "grp1", Text: "b", Timestamp: 2, Status: models.StatusSent}}

	if err := s.SaveConversation(key, first); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	if err := s.SaveConversation(key, second); err != nil {
		t.Fatalf("SaveConversation: %v", err)
	}
	got, err := s.LoadConversation(key)
	if err != nil {
		t.Fatalf("LoadConversation: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m2" {
		t.Errorf("overwrite failed, got %+v", got)
	}
}
