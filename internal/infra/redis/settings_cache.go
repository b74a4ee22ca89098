package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"neetiq-service/internal/app"
)

// settingAbsent marks a cached miss so a missing key does not hammer the
// backing store on every read.
const settingAbsent = "\x00absent"

// SettingsCache is a read-through Redis cache in front of the persistent
// settings table. Useful when several service replicas share one settings
// store; writes invalidate by writing through.
type SettingsCache struct {
	client *redis.Client
	repo   app.SettingsRepository
	ttl    time.Duration
	sf     singleflight.Group
}

func NewSettingsCache(client *redis.Client, repo app.SettingsRepository, ttl time.Duration) *SettingsCache {
	return &SettingsCache{client: client, repo: repo, ttl: ttl}
}

func (c *SettingsCache) Get(ctx context.Context, key string) (string, bool, error) {
	cached, err := c.client.Get(ctx, c.key(key)).Result()
	if err == nil {
		if cached == settingAbsent {
			return "", false, nil
		}
		return cached, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", false, fmt.Errorf("settings cache get %s: %w", key, err)
	}

	type lookup struct {
		value string
		ok    bool
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		value, ok, err := c.repo.Get(ctx, key)
		if err != nil {
			return lookup{}, err
		}
		cached := value
		if !ok {
			cached = settingAbsent
		}
		// Cache fill is best effort; the store already answered.
		_ = c.client.Set(ctx, c.key(key), cached, c.ttl).Err()
		return lookup{value: value, ok: ok}, nil
	})
	if err != nil {
		return "", false, err
	}
	l := result.(lookup)
	return l.value, l.ok, nil
}

func (c *SettingsCache) Set(ctx context.Context, key, value string) error {
	if err := c.repo.Set(ctx, key, value); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("settings cache set %s: %w", key, err)
	}
	return nil
}

func (c *SettingsCache) key(key string) string {
	return "settings:" + key
}
