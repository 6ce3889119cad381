package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/fos7a/institute-api/pkg/errors"
)

// CacheRepository is the short-lived key/value session store backing carts and
// cooldowns. It uses Redis when a client is configured and an in-process map otherwise.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	memory map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewCacheRepository constructs a session store. A nil client selects the in-memory store.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger, memory: make(map[string]memoryEntry), now: time.Now}
}

// Get retrieves and unmarshals the stored value into dest. Missing keys yield ErrCacheMiss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	if r.client == nil {
		entry, ok := r.load(key)
		if !ok {
			return appErrors.ErrCacheMiss
		}
		raw = entry
	} else {
		value, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return appErrors.ErrCacheMiss
			}
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		raw = value
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// SetIfAbsent stores value only when key is not present. It reports whether the write happened.
func (r *CacheRepository) SetIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if entry, ok := r.memory[key]; ok && !r.expired(entry) {
			return false, nil
		}
		r.memory[key] = memoryEntry{value: payload, expiresAt: r.expiry(ttl)}
		return true, nil
	}

	ok, err := r.client.SetNX(ctx, key, payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		r.mu.Lock()
		delete(r.memory, key)
		r.mu.Unlock()
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// PingContext reports whether the backing store is reachable.
func (r *CacheRepository) PingContext(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *CacheRepository) load(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.memory[key]
	if !ok {
		return nil, false
	}
	if r.expired(entry) {
		delete(r.memory, key)
		return nil, false
	}
	return entry.value, true
}

func (r *CacheRepository) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(ttl)
}

func (r *CacheRepository) expired(entry memoryEntry) bool {
	return !entry.expiresAt.IsZero() && !r.now().Before(entry.expiresAt)
}
