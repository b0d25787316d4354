package delivery

import (
	"sync"
	"time"
)

// DefaultTypingWindow is how long a typing indicator stays alive
// without a fresh signal. There is no "stopped typing" event on the
// wire; expiry is purely local.
const DefaultTypingWindow = 2500 * time.Millisecond

// TypingTracker keeps the ephemeral typing state per peer or group.
type TypingTracker struct {
	mu       sync.Mutex
	window   time.Duration
	deadline map[string]time.Time
	now      func() time.Time
}

func NewTypingTracker(window time.Duration) *TypingTracker {
	if window <= 0 {
		window = DefaultTypingWindow
	}
	return &TypingTracker{
		window:   window,
		deadline: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Observe records a typing signal from a peer or group room.
func (t *TypingTracker) Observe(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadline[id] = t.now().Add(t.window)
}

// IsTyping reports whether the indicator for id is still live, and
// drops it once expired.
func (t *TypingTracker) IsTyping(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.deadline[id]
	if !ok {
		return false
	}
	if t.now().After(d) {
		delete(t.deadline, id)
		return false
	}
	return true
}
