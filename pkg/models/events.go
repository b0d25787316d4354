package models

import "encoding/json"

// Socket event names, shared by the relay and the client engine.
const (
	EventStatusUpdate     = "user-status-update"
	EventChatMessage      = "chat_message"
	EventMessageDelivered = "message-delivered"
	EventJoinGroup        = "join-group"
	EventGroupMessage     = "group-message"
	EventNewGroupMessage  = "new-group-message"
	EventTypingPrivate    = "typing-private"
	EventTyping           = "typing"
	EventUserTyping       = "user-typing"
	EventSeenPrivate      = "seen-private"
	EventSeen             = "seen"
	EventMessageSeen      = "message-seen"
	EventDeleteMessage    = "delete-message"
	EventMessageDeleted   = "message-deleted"
	EventReaction         = "reaction"
	EventMessageReacted   = "message-reacted"
)

// Frame is the envelope for every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// OutFrame is the write-side counterpart of Frame.
type OutFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// StatusUpdate announces an online/offline transition to all parties.
// LastSeen is set only on the transition to offline.
type StatusUpdate struct {
	UserID   string `json:"userId"`
	Status   string `json:"status"`
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// DeliveredAck is the transport-level acknowledgement the relay sends
// back to the sender once a direct message reached at least one of the
// recipient's live sockets.
type DeliveredAck struct {
	MessageID string `json:"messageId"`
	To        string `json:"to"`
}

// JoinGroupRequest subscribes a connection to a group room.
type JoinGroupRequest struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// TypingPrivate is the ephemeral 1:1 typing signal. At most once, no
// retry; the receiving client expires it after a fixed window.
type TypingPrivate struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TypingGroup is the group-room typing signal.
type TypingGroup struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

// SeenPrivate is a 1:1 read receipt raised by the reader. An empty
// MessageID means everything addressed to the reader in this
// conversation has been seen.
type SeenPrivate struct {
	From      string `json:"from"`
	To        string `json:"to"`
	MessageID string `json:"messageId,omitempty"`
}

// SeenGroup is the group read receipt for a single message.
type SeenGroup struct {
	GroupID   string `json:"groupId"`
	UserID    string `json:"userId"`
	MessageID string `json:"messageId"`
}

// DeleteRequest asks the relay to fan a soft deletion out to both
// participants of a direct conversation.
type DeleteRequest struct {
	MessageID string `json:"messageId"`
	UserID1   string `json:"userId1"`
	UserID2   string `json:"userId2"`
}

// Reaction is an emoji reaction to a group message. One relay hop to
// the whole room, the reactor's own sockets included; not persisted.
type Reaction struct {
	MessageID string `json:"messageId"`
	GroupID   string `json:"groupId"`
	Reaction  string `json:"reaction"`
	UserID    string `json:"userId"`
}
