package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// activeEntry is the cached view of a user's current session.
type activeEntry struct {
	SessionID int64  `json:"session_id"`
	StationID string `json:"station_id"`
	StartedAt int64  `json:"started_at"`
}

// ActiveSessionCache keeps the active session per user in redis for quick
// presence checks. Keyed by user id because at most one session per user
// may be active.
type ActiveSessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewActiveSessionCache returns the redis-backed cache.
func NewActiveSessionCache(client *redis.Client, ttl time.Duration) *ActiveSessionCache {
	return &ActiveSessionCache{client: client, ttl: ttl}
}

func (c *ActiveSessionCache) key(userID int64) string {
	return fmt.Sprintf("sessions:active:user:%d", userID)
}

// Save caches the user's active session.
func (c *ActiveSessionCache) Save(ctx context.Context, userID, sessionID int64, stationID string) error {
	data, err := json.Marshal(activeEntry{
		SessionID: sessionID,
		StationID: stationID,
		StartedAt: time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(userID), data, c.ttl).Err()
}

// Delete removes the cached entry.
func (c *ActiveSessionCache) Delete(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}
