package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

const settingsHashKey = "settings"

// SettingRepository keeps operator settings in a Redis hash, or in memory
// when Redis is not configured.
type SettingRepository struct {
	client *redis.Client

	mu     sync.RWMutex
	values map[string]string
}

// NewSettingRepository constructs the repository. client may be nil.
func NewSettingRepository(client *redis.Client) *SettingRepository {
	return &SettingRepository{client: client, values: map[string]string{}}
}

// Get returns the setting and whether it was set.
func (r *SettingRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if r.client == nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		v, ok := r.values[key]
		return v, ok, nil
	}
	v, err := r.client.HGet(ctx, settingsHashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores the setting.
func (r *SettingRepository) Set(ctx context.Context, key, value string) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.values[key] = value
		return nil
	}
	if err := r.client.HSet(ctx, settingsHashKey, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

// Delete clears the setting.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.values, key)
		return nil
	}
	if err := r.client.HDel(ctx, settingsHashKey, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	return nil
}
