package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "support:idempotency:"
	idempotencyPending   = "pending"
	idempotencyDone      = "done"
)

// IdempotencyStore remembers request keys so a retried write is applied at most once.
type IdempotencyStore interface {
	// Reserve claims key for ttl. It returns false when the key was already claimed.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Complete marks a reserved key as applied. A key that is no longer held is left alone.
	Complete(ctx context.Context, key string) error
	// Completed reports whether the write behind key has been applied.
	Completed(ctx context.Context, key string) (bool, error)
	// Release forgets key so a failed request can be retried with it.
	Release(ctx context.Context, key string) error
}

type redisIdempotencyStore struct {
	client *redis.Client
}

// NewRedisIdempotencyStore builds a store shared by every service replica.
func NewRedisIdempotencyStore(client *redis.Client) IdempotencyStore {
	return &redisIdempotencyStore{client: client}
}

func (s *redisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyKeyPrefix+key, idempotencyPending, ttl).Result()
}

func (s *redisIdempotencyStore) Complete(ctx context.Context, key string) error {
	err := s.client.SetXX(ctx, idempotencyKeyPrefix+key, idempotencyDone, redis.KeepTTL).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (s *redisIdempotencyStore) Completed(ctx context.Context, key string) (bool, error) {
	val, err := s.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == idempotencyDone, nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

type idempotencyEntry struct {
	expires time.Time
	done    bool
}

type memoryIdempotencyStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]idempotencyEntry
}

// NewMemoryIdempotencyStore builds a process-local store.
func NewMemoryIdempotencyStore() IdempotencyStore {
	return &memoryIdempotencyStore{now: time.Now, entries: make(map[string]idempotencyEntry)}
}

func (s *memoryIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.entries[key] = idempotencyEntry{expires: s.now().Add(ttl)}
	return true, nil
}

func (s *memoryIdempotencyStore) Complete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.live(key); ok {
		entry.done = true
		s.entries[key] = entry
	}
	return nil
}

func (s *memoryIdempotencyStore) Completed(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	return ok && entry.done, nil
}

func (s *memoryIdempotencyStore) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// live returns the unexpired entry for key. Callers hold mu.
func (s *memoryIdempotencyStore) live(key string) (idempotencyEntry, bool) {
	entry, ok := s.entries[key]
	if !ok || !s.now().Before(entry.expires) {
		return idempotencyEntry{}, false
	}
	return entry, true
}
