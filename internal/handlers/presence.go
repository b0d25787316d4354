package handlers

import "sync"

// PresenceTracker maps live connections to users. The connection table
// is keyed by connection id with a refcount index by user id: a user is
// online while refcount > 0, so only the first connection broadcasts
// online and only the last disconnect broadcasts offline, no matter how
// many tabs are open.
type PresenceTracker struct {
	mu    sync.RWMutex
	conns map[string]string // connID -> userID
	users map[string]int    // userID -> live connection count
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		conns: make(map[string]string),
		users: make(map[string]int),
	}
}

// Register adds a connection and reports whether the user just came
// online.
func (p *PresenceTracker) Register(connID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conns[connID] = userID
	p.users[userID]++
	return p.users[userID] == 1
}

// Unregister removes a connection. wentOffline is true only when this
// was the user's final connection.
func (p *PresenceTracker) Unregister(connID string) (userID string, wentOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.conns[connID]
	if !ok {
		return "", false
	}
	delete(p.conns, connID)

	p.users[userID]--
	if p.users[userID] <= 0 {
		delete(p.users, userID)
		return userID, true
	}
	return userID, false
}

// IsOnline never blocks; it is called on every status render.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[userID] > 0
}

// OnlineUsers returns the set of users with at least one connection.
func (p *PresenceTracker) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, len(p.users))
	for id := range p.users {
		out = append(out, id)
	}
	return out
}

// ConnectionCount reports how many live sockets a user has.
func (p *PresenceTracker) ConnectionCount(userID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[userID]
}
