package models

import (
	"sort"
	"strings"
)

// Status is the delivery state of a message. It advances monotonically
// per message: sending -> sent -> delivered -> read, with failed as a
// terminal branch when an upload or send errors out.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank orders statuses for merge resolution: read > delivered > sent.
// sending and failed rank below sent so any server-confirmed state wins
// a tie against a purely local one.
func (s Status) Rank() int {
	switch s {
	case StatusRead:
		return 5
	case StatusDelivered:
		return 4
	case StatusSent:
		return 3
	case StatusSending:
		return 2
	case StatusFailed:
		return 1
	}
	return 0
}

// Attachment is one uploaded file referenced by a message.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Message is the wire and cache representation of a chat message.
// Exactly one of To or GroupID is set. The ID is generated client-side
// before transmission so echoes and replays dedup by id everywhere.
type Message struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	To          string       `json:"to,omitempty"`
	GroupID     string       `json:"groupId,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   int64        `json:"timestamp"`
	Status      Status       `json:"status"`
	IsDeleted   bool         `json:"isDeleted,omitempty"`
	DeletedAt   int64        `json:"deletedAt,omitempty"`
}

// Valid reports whether the message satisfies the basic shape invariant:
// an id, a sender, and exactly one of To/GroupID.
func (m Message) Valid() bool {
	if m.ID == "" || m.From == "" {
		return false
	}
	return (m.To == "") != (m.GroupID == "")
}

// Empty reports whether the message carries no visible content.
func (m Message) Empty() bool {
	return m.Text == "" && len(m.Attachments) == 0
}

// Key returns the conversation key the message belongs to.
func (m Message) Key() string {
	if m.GroupID != "" {
		return GroupKey(m.GroupID)
	}
	return ConversationKey(m.From, m.To)
}

// PeerOf returns the other participant of a direct message from the
// perspective of self. Empty for group messages.
func (m Message) PeerOf(self string) string {
	if m.GroupID != "" {
		return ""
	}
	if m.From == self {
		return m.To
	}
	return m.From
}

// ConversationKey canonicalizes a 1:1 conversation identifier: the
// unordered user-id pair, sorted, so both participants derive the same
// key. This is the join key across local cache, server history and the
// private room pair.
func ConversationKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return "chat_" + ids[0] + "_" + ids[1]
}

// GroupKey returns the conversation key for a group room.
func GroupKey(groupID string) string {
	return "group_" + groupID
}

// ParseConversationKey splits a direct conversation key back into its
// two participant ids. ok is false for group keys or malformed input.
func ParseConversationKey(key string) (userA, userB string, ok bool) {
	rest, found := strings.CutPrefix(key, "chat_")
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ParseGroupKey extracts the group id from a group conversation key.
func ParseGroupKey(key string) (groupID string, ok bool) {
	rest, found := strings.CutPrefix(key, "group_")
	if !found || rest == "" {
		return "", false
	}
	return rest, true
}
