package handlers

import (
	"context"
	"log"
	"time"

	"chat-core/internal/services"
	"chat-core/internal/utils"
	"chat-core/pkg/models"
)

// Hub ties the presence tracker, room router and the durable services
// together behind the socket event vocabulary.
type Hub struct {
	Router   *RoomRouter
	Presence *PresenceTracker
	History  *services.HistoryService
	LastSeen *services.PresenceStore
}

func NewHub(history *services.HistoryService, lastSeen *services.PresenceStore) *Hub {
	return &Hub{
		Router:   NewRoomRouter(),
		Presence: NewPresenceTracker(),
		History:  history,
		LastSeen: lastSeen,
	}
}

// Connect registers a new connection: the client joins its private
// room and, if this is the user's first socket, everyone else learns
// they came online. The connecting socket is excluded; it already
// knows it is online.
func (h *Hub) Connect(c *Client) {
	h.Router.Add(c)
	if h.Presence.Register(c.ID, c.UserID) {
		h.Router.EmitToAll(models.EventStatusUpdate, models.StatusUpdate{
			UserID: c.UserID,
			Status: "online",
		}, c.ID)
	}
}

// Disconnect tears a connection down. Only the final socket of a user
// triggers the offline broadcast and the last-seen write.
func (h *Hub) Disconnect(c *Client) {
	h.Router.Remove(c.ID)

	userID, wentOffline := h.Presence.Unregister(c.ID)
	if !wentOffline {
		return
	}

	now := time.Now().UnixMilli()
	h.Router.EmitToAll(models.EventStatusUpdate, models.StatusUpdate{
		UserID:   userID,
		Status:   "offline",
		LastSeen: now,
	}, "")

	if h.LastSeen != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			utils.LogError(h.LastSeen.SetLastSeen(ctx, userID, now), "SetLastSeen")
		}()
	}
}

// HandleFrame dispatches one inbound socket frame.
func (h *Hub) HandleFrame(c *Client, raw []byte) {
	var frame models.Frame
	if err := utils.SafeJSONParse(raw, &frame); err != nil {
		utils.LogError(err, "JSON Parse")
		return
	}

	switch frame.Event {
	case models.EventChatMessage:
		var msg models.Message
		if err := utils.SafeJSONParse(frame.Data, &msg); err != nil {
			utils.LogError(err, "chat_message")
			return
		}
		h.handleDirectMessage(c, msg)

	case models.EventGroupMessage:
		var msg models.Message
		if err := utils.SafeJSONParse(frame.Data, &msg); err != nil {
			utils.LogError(err, "group-message")
			return
		}
		h.handleGroupMessage(c, msg)

	case models.EventJoinGroup:
		var req models.JoinGroupRequest
		if err := utils.SafeJSONParse(frame.Data, &req); err != nil || req.GroupID == "" {
			return
		}
		h.Router.Join(req.GroupID, c.ID)

	case models.EventTypingPrivate:
		var t models.TypingPrivate
		if err := utils.SafeJSONParse(frame.Data, &t); err != nil || t.To == "" {
			return
		}
		t.From = c.UserID
		h.Router.RouteTypingPrivate(t)

	case models.EventTyping:
		var t models.TypingGroup
		if err := utils.SafeJSONParse(frame.Data, &t); err != nil || t.GroupID == "" {
			return
		}
		t.UserID = c.UserID
		h.Router.RouteTypingGroup(t, c.ID)

	case models.EventSeenPrivate:
		var s models.SeenPrivate
		if err := utils.SafeJSONParse(frame.Data, &s); err != nil || s.To == "" {
			return
		}
		s.From = c.UserID
		h.handleSeenPrivate(s)

	case models.EventSeen:
		var s models.SeenGroup
		if err := utils.SafeJSONParse(frame.Data, &s); err != nil || s.GroupID == "" || s.MessageID == "" {
			return
		}
		s.UserID = c.UserID
		h.handleSeenGroup(c, s)

	case models.EventReaction:
		var re models.Reaction
		if err := utils.SafeJSONParse(frame.Data, &re); err != nil || re.GroupID == "" || re.MessageID == "" {
			return
		}
		re.UserID = c.UserID
		h.Router.RouteReaction(re)

	case models.EventDeleteMessage:
		var d models.DeleteRequest
		if err := utils.SafeJSONParse(frame.Data, &d); err != nil {
			return
		}
		h.handleDeletion(c, d)

	default:
		log.Printf("Unknown event: %s", frame.Event)
	}
}

// handleDirectMessage persists and relays a 1:1 message, then raises
// the transport ack when at least one recipient socket was reached.
// The sender moves to delivered only on this explicit ack, never on a
// timer.
func (h *Hub) handleDirectMessage(c *Client, msg models.Message) {
	msg.From = c.UserID // never trust the payload's sender
	if !msg.Valid() || msg.To == "" {
		return
	}
	if msg.Status.Rank() < models.StatusSent.Rank() {
		msg.Status = models.StatusSent
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.History.SaveMessage(ctx, msg); err != nil {
		utils.LogError(err, "SaveMessage")
		return
	}

	delivered := h.Router.RouteDirect(msg)
	if delivered == 0 {
		return
	}

	if err := h.History.MarkDelivered(ctx, msg.ID); err != nil {
		utils.LogError(err, "MarkDelivered")
	}
	h.Router.Emit(msg.From, models.EventMessageDelivered, models.DeliveredAck{
		MessageID: msg.ID,
		To:        msg.To,
	}, "")
}

func (h *Hub) handleGroupMessage(c *Client, msg models.Message) {
	msg.From = c.UserID
	if !msg.Valid() || msg.GroupID == "" {
		return
	}
	if msg.Status.Rank() < models.StatusSent.Rank() {
		msg.Status = models.StatusSent
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.History.SaveMessage(ctx, msg); err != nil {
		utils.LogError(err, "SaveMessage")
		return
	}

	h.Router.RouteGroup(msg)
}

func (h *Hub) handleSeenPrivate(s models.SeenPrivate) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := models.ConversationKey(s.From, s.To)
	if _, err := h.History.MarkConversationSeen(ctx, key, s.From); err != nil {
		utils.LogError(err, "MarkConversationSeen")
	}
	h.Router.RouteSeenPrivate(s)
}

func (h *Hub) handleSeenGroup(c *Client, s models.SeenGroup) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.History.MarkMessageSeen(ctx, s.MessageID, s.UserID); err != nil {
		utils.LogError(err, "MarkMessageSeen")
	}
	h.Router.RouteSeenGroup(s, c.ID)
}

func (h *Hub) handleDeletion(c *Client, d models.DeleteRequest) {
	if d.MessageID == "" || d.UserID1 == "" || d.UserID2 == "" {
		return
	}
	// Only a participant may delete.
	if c.UserID != d.UserID1 && c.UserID != d.UserID2 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.History.SoftDelete(ctx, d.MessageID, time.Now().UnixMilli()); err != nil {
		utils.LogError(err, "SoftDelete")
	}
	h.Router.RouteDeletion(d)
}
