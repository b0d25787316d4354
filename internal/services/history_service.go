package services

import (
	"context"
	"encoding/json"
	"fmt"

	"chat-core/internal/db"
	coremodels "chat-core/pkg/models"
)

// HistoryService is the durable side of the delivery path. The live
// relay is best-effort; this table is what the client's
// fetch-and-reconcile converges against.
type HistoryService struct{}

func NewHistoryService() *HistoryService {
	return &HistoryService{}
}

// SaveMessage persists a message keyed by its client-generated id.
// Replays (reconnect, duplicate emit) are no-ops.
func (s *HistoryService) SaveMessage(ctx context.Context, msg coremodels.Message) error {
	if !msg.Valid() {
		return fmt.Errorf("invalid message: id=%q", msg.ID)
	}

	attachments, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	query := `
		INSERT INTO messages (id, conversation_key, from_user, to_user, group_id, body, attachments, ts, status, is_deleted, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = db.Pool.Exec(ctx, query,
		msg.ID, msg.Key(), msg.From, nullable(msg.To), nullable(msg.GroupID),
		msg.Text, attachments, msg.Timestamp, string(msg.Status), msg.IsDeleted, nullableInt(msg.DeletedAt))
	return err
}

// GetConversation returns a conversation's log ascending by timestamp.
func (s *HistoryService) GetConversation(ctx context.Context, key string, limit int) ([]coremodels.Message, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT id, from_user, COALESCE(to_user, ''), COALESCE(group_id, ''), body, attachments, ts, status, is_deleted, COALESCE(deleted_at, 0)
		FROM messages
		WHERE conversation_key = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := db.Pool.Query(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []coremodels.Message
	for rows.Next() {
		var m coremodels.Message
		var status string
		var attachments []byte
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.GroupID, &m.Text, &attachments, &m.Timestamp, &status, &m.IsDeleted, &m.DeletedAt); err != nil {
			return nil, err
		}
		m.Status = coremodels.Status(status)
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
				return nil, fmt.Errorf("corrupt attachments for %s: %w", m.ID, err)
			}
		}
		if m.IsDeleted {
			m.Text = ""
			m.Attachments = nil
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to show oldest first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkDelivered records the transport ack for a direct message.
func (s *HistoryService) MarkDelivered(ctx context.Context, messageID string) error {
	query := `UPDATE messages SET status = 'delivered' WHERE id = $1 AND status = 'sent'`
	_, err := db.Pool.Exec(ctx, query, messageID)
	return err
}

// MarkConversationSeen flips every message addressed to the reader in
// this conversation to read. Returns how many rows changed.
func (s *HistoryService) MarkConversationSeen(ctx context.Context, key, readerID string) (int64, error) {
	query := `UPDATE messages SET status = 'read' WHERE conversation_key = $1 AND to_user = $2 AND status <> 'read'`
	tag, err := db.Pool.Exec(ctx, query, key, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkMessageSeen records a group read receipt. The single status
// column is first-reader-wins: the first member's receipt moves the
// message to read for everyone, there is no per-member read state.
// The sender's own receipt is ignored.
func (s *HistoryService) MarkMessageSeen(ctx context.Context, messageID, readerID string) error {
	query := `UPDATE messages SET status = 'read' WHERE id = $1 AND from_user <> $2 AND status <> 'read'`
	_, err := db.Pool.Exec(ctx, query, messageID, readerID)
	return err
}

// SoftDelete marks a message deleted in place. The row stays so the
// deletion survives the next fetch; the content does not.
func (s *HistoryService) SoftDelete(ctx context.Context, messageID string, deletedAt int64) error {
	query := `UPDATE messages SET is_deleted = TRUE, deleted_at = $2, body = '', attachments = '[]' WHERE id = $1`
	_, err := db.Pool.Exec(ctx, query, messageID, deletedAt)
	return err
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(v int64) interface{} {
	if v == 0 {
		return nil
	}
	return v
}
