package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Latest values expire so dead controllers disappear from the hot path.
const latestTTL = 24 * time.Hour

type cachedPoint struct {
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// RedisCache keeps the latest data point per controller in Redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new hot cache
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func latestKey(controllerID uuid.UUID) string {
	return fmt.Sprintf("controller:last:%s", controllerID)
}

// SetLatest overwrites the hot copy of a controller's latest value.
func (c *RedisCache) SetLatest(ctx context.Context, controllerID uuid.UUID, value float64, at time.Time) error {
	body, err := json.Marshal(cachedPoint{Value: value, Time: at})
	if err != nil {
		return fmt.Errorf("failed to marshal cached point: %w", err)
	}
	if err := c.client.Set(ctx, latestKey(controllerID), body, latestTTL).Err(); err != nil {
		return fmt.Errorf("failed to set latest value: %w", err)
	}
	return nil
}

// GetLatest reads the hot copy. ok is false on a cache miss.
func (c *RedisCache) GetLatest(ctx context.Context, controllerID uuid.UUID) (float64, time.Time, bool, error) {
	body, err := c.client.Get(ctx, latestKey(controllerID)).Bytes()
	if err == redis.Nil {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to get latest value: %w", err)
	}

	var point cachedPoint
	if err := json.Unmarshal(body, &point); err != nil {
		return 0, time.Time{}, false, fmt.Errorf("failed to unmarshal cached point: %w", err)
	}
	return point.Value, point.Time, true, nil
}
