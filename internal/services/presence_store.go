package services

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// PresenceStore persists last-seen timestamps so the status endpoint
// can answer for users with no live connection. Writes happen only on
// the transition to offline and are best-effort: a redis failure never
// touches the routing path.
type PresenceStore struct {
	rdb *redis.Client
}

func NewPresenceStore(addr, password string, db int) *PresenceStore {
	return &PresenceStore{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *PresenceStore) Close() error {
	return s.rdb.Close()
}

func lastSeenKey(userID string) string {
	return "presence:last_seen:" + userID
}

// SetLastSeen records the moment a user's final connection dropped.
func (s *PresenceStore) SetLastSeen(ctx context.Context, userID string, ts int64) error {
	return s.rdb.Set(ctx, lastSeenKey(userID), ts, 0).Err()
}

// LastSeen returns the stored timestamp, or 0 when the user has never
// disconnected cleanly.
func (s *PresenceStore) LastSeen(ctx context.Context, userID string) (int64, error) {
	ts, err := s.rdb.Get(ctx, lastSeenKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return ts, nil
}
