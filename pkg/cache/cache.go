// Package cache is the client-side conversation cache backed by
// pebble. It is the concrete storage collaborator consumed by
// pkg/delivery: conversations are stored whole, one value per
// conversation key, matching the read-modify-write discipline of the
// delivery engine.
package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"

	"chat-core/pkg/models"
)

type Store struct {
	db *pebble.DB
}

// conversationRecord is the on-disk value for one conversation.
type conversationRecord struct {
	LastUpdated int64            `json:"lastUpdated"`
	Messages    []models.Message `json:"messages"`
}

// Open opens (or creates) a pebble database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func convKey(key string) []byte {
	return []byte("conv:" + key)
}

// LoadConversation returns the cached log for a conversation key. A
// missing key yields an empty log, not an error.
func (s *Store) LoadConversation(key string) ([]models.Message, error) {
	val, closer, err := s.db.Get(convKey(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", key, err)
	}
	defer closer.Close()

	var rec conversationRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", key, err)
	}
	return rec.Messages, nil
}

// SaveConversation replaces the cached log for a conversation key.
func (s *Store) SaveConversation(key string, msgs []models.Message) error {
	rec := conversationRecord{
		LastUpdated: time.Now().UnixMilli(),
		Messages:    msgs,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation %s: %w", key, err)
	}
	if err := s.db.Set(convKey(key), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to write conversation %s: %w", key, err)
	}
	return nil
}
