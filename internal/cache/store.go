package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semgate-labs/semgate/internal/errors"
)

// Store is the shared cache behind fingerprints: plain value storage
// plus the advisory locks the single-flight protocol runs on. A Store
// error means the cache is unavailable, never that a key is absent.
type Store interface {
	// Get returns the value for key. The second return is false when
	// the key does not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// SetWithTTL stores value under key for the given TTL.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes key.
	Del(ctx context.Context, key string) error

	// AcquireLock takes the advisory lock named by key for at most ttl.
	// Returns false when another holder has it.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseLock drops the advisory lock named by key.
	ReleaseLock(ctx context.Context, key string) error
}

// RedisStore implements Store on a Redis client. Locks are SET NX keys
// with a TTL, so a crashed holder expires instead of wedging followers.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewCacheUnavailable(err)
	}
	return val, true, nil
}

// SetWithTTL implements Store.
func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.NewCacheUnavailable(err)
	}
	return nil
}

// Del implements Store.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.NewCacheUnavailable(err)
	}
	return nil
}

// AcquireLock implements Store.
func (s *RedisStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, errors.NewCacheUnavailable(err)
	}
	return ok, nil
}

// ReleaseLock implements Store.
func (s *RedisStore) ReleaseLock(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return errors.NewCacheUnavailable(err)
	}
	return nil
}

// MemoryStore implements Store in process memory. It serves tests and
// single-instance deployments; expiry is checked lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || s.expired(e) {
		delete(s.entries, key)
		return nil, false, nil
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// SetWithTTL implements Store.
func (s *MemoryStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Del implements Store.
func (s *MemoryStore) Del(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// AcquireLock implements Store.
func (s *MemoryStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && !s.expired(e) {
		return false, nil
	}
	e := memoryEntry{value: []byte("1")}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	s.entries[key] = e
	return true, nil
}

// ReleaseLock implements Store.
func (s *MemoryStore) ReleaseLock(ctx context.Context, key string) error {
	return s.Del(ctx, key)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expires.IsZero() && time.Now().After(e.expires)
}
