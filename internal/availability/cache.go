package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProfileCache is a read-through Redis cache for availability profiles,
// keyed by doctor. A miss returns (nil, nil); callers fall back to the
// repository and repopulate.
type ProfileCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewProfileCache creates a cache with the given entry TTL.
func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{redis: client, ttl: ttl}
}

func (c *ProfileCache) key(doctorID string) string {
	return fmt.Sprintf("availability:profile:%s", doctorID)
}

// Get returns the cached profile for a doctor, or nil on a miss.
func (c *ProfileCache) Get(ctx context.Context, doctorID string) (*Profile, error) {
	data, err := c.redis.Get(ctx, c.key(doctorID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("availability: cache get: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("availability: cache unmarshal: %w", err)
	}
	return &profile, nil
}

// Set stores a profile under its doctor key.
func (c *ProfileCache) Set(ctx context.Context, profile *Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("availability: cache marshal: %w", err)
	}
	if err := c.redis.Set(ctx, c.key(profile.DoctorID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("availability: cache set: %w", err)
	}
	return nil
}

// Invalidate drops the cached profile for a doctor.
func (c *ProfileCache) Invalidate(ctx context.Context, doctorID string) error {
	if err := c.redis.Del(ctx, c.key(doctorID)).Err(); err != nil {
		return fmt.Errorf("availability: cache invalidate: %w", err)
	}
	return nil
}
