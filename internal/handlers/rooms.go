package handlers

import (
	"sync"

	"chat-core/internal/utils"
	"chat-core/pkg/models"
)

// RoomRouter maintains the room membership tables and fans events out
// to members. Rooms are either private (named by a user id, joined
// automatically at connect time) or group rooms (joined explicitly via
// join-group).
//
// The router is a best-effort relay: no retries, no queuing for
// offline recipients. Durability comes from the history service and
// the client's fetch-and-reconcile, not from this code. Member
// channels are snapshotted under RLock and written to outside it; no
// socket I/O ever happens under the lock.
type RoomRouter struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]*Client // roomName -> connID -> client
	clients map[string]*Client            // connID -> client
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:   make(map[string]map[string]*Client),
		clients: make(map[string]*Client),
	}
}

// Add registers a connection and joins it to its own private room.
func (r *RoomRouter) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clients[c.ID] = c
	r.join(c.UserID, c)
}

// Join subscribes an already-registered connection to a group room.
func (r *RoomRouter) Join(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return
	}
	r.join(room, c)
}

func (r *RoomRouter) join(room string, c *Client) {
	if _, ok := r.rooms[room]; !ok {
		r.rooms[room] = make(map[string]*Client)
	}
	r.rooms[room][c.ID] = c
}

// Remove drops a connection from every room and closes its send
// channel, stopping the write pump.
func (r *RoomRouter) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return
	}
	delete(r.clients, connID)

	for room, members := range r.rooms {
		if _, ok := members[connID]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	close(c.Send)
}

// snapshot copies a room's members so sends happen outside the lock.
func (r *RoomRouter) snapshot(room, excludeConnID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[room]
	if !ok {
		return nil
	}
	out := make([]*Client, 0, len(members))
	for id, c := range members {
		if id == excludeConnID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Emit encodes one frame and queues it to every member of a room.
// Returns how many connections accepted it.
func (r *RoomRouter) Emit(room, event string, data interface{}, excludeConnID string) int {
	payload, err := utils.EncodeFrame(event, data)
	if err != nil {
		utils.LogError(err, "EncodeFrame")
		return 0
	}

	delivered := 0
	for _, c := range r.snapshot(room, excludeConnID) {
		if c.queue(payload) {
			delivered++
		}
	}
	return delivered
}

// EmitToAll broadcasts to every registered connection, used for
// presence transitions.
func (r *RoomRouter) EmitToAll(event string, data interface{}, excludeConnID string) {
	payload, err := utils.EncodeFrame(event, data)
	if err != nil {
		utils.LogError(err, "EncodeFrame")
		return
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	for _, c := range targets {
		c.queue(payload)
	}
}

// RouteDirect delivers a private message to the recipient's room and
// echoes it to the sender's own room for multi-tab consistency.
// Returns the number of recipient sockets reached; zero means the
// recipient was offline and will converge from history instead.
func (r *RoomRouter) RouteDirect(msg models.Message) int {
	delivered := r.Emit(msg.To, models.EventChatMessage, msg, "")
	if msg.From != msg.To {
		r.Emit(msg.From, models.EventChatMessage, msg, "")
	}
	return delivered
}

// RouteGroup broadcasts to every socket in the group room, the
// sender's included; clients dedup the echo by message id.
func (r *RoomRouter) RouteGroup(msg models.Message) int {
	return r.Emit(msg.GroupID, models.EventNewGroupMessage, msg, "")
}

// RouteTypingPrivate forwards the ephemeral 1:1 typing signal.
// At most once, no retry.
func (r *RoomRouter) RouteTypingPrivate(t models.TypingPrivate) {
	r.Emit(t.To, models.EventTypingPrivate, t, "")
}

// RouteTypingGroup forwards the group typing signal to everyone in the
// room except the typist's own connection.
func (r *RoomRouter) RouteTypingGroup(t models.TypingGroup, excludeConnID string) {
	r.Emit(t.GroupID, models.EventUserTyping, t, excludeConnID)
}

// RouteSeenPrivate forwards a 1:1 read receipt to the original sender.
func (r *RoomRouter) RouteSeenPrivate(s models.SeenPrivate) {
	r.Emit(s.To, models.EventSeenPrivate, s, "")
}

// RouteReaction broadcasts a reaction to the whole group room. The
// reactor's own sockets get it too, so every tab renders the reaction
// the same way.
func (r *RoomRouter) RouteReaction(re models.Reaction) {
	r.Emit(re.GroupID, models.EventMessageReacted, re, "")
}

// RouteSeenGroup forwards a group read receipt to the room.
func (r *RoomRouter) RouteSeenGroup(s models.SeenGroup, excludeConnID string) {
	r.Emit(s.GroupID, models.EventMessageSeen, s, excludeConnID)
}

// RouteDeletion notifies both participants' private rooms so the
// deletion lands even for the peer not currently viewing the
// conversation. Offline peers converge through the soft-deleted row in
// history.
func (r *RoomRouter) RouteDeletion(d models.DeleteRequest) {
	r.Emit(d.UserID1, models.EventMessageDeleted, d, "")
	if d.UserID2 != d.UserID1 {
		r.Emit(d.UserID2, models.EventMessageDeleted, d, "")
	}
}
