package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DedupStore remembers which event ids have been processed. MarkProcessed
// returns true when this call claimed the id (first sight) and false when the
// event was already seen.
type DedupStore interface {
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

// MemoryDedup is a process-local DedupStore with TTL expiry. Suitable for a
// single API instance; multi-instance deployments use RedisDedup.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

// NewMemoryDedup creates an empty in-memory dedup cache.
func NewMemoryDedup() *MemoryDedup {
	return &MemoryDedup{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (d *MemoryDedup) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	// Lazy expiry: drop stale entries as we go.
	for id, expires := range d.seen {
		if now.After(expires) {
			delete(d.seen, id)
		}
	}

	if expires, ok := d.seen[eventID]; ok && now.Before(expires) {
		return false, nil
	}
	d.seen[eventID] = now.Add(ttl)
	return true, nil
}

// RedisDedup deduplicates across API instances using SETNX with TTL.
type RedisDedup struct {
	client *redis.Client
	prefix string
}

// NewRedisDedup creates a Redis-backed dedup store.
func NewRedisDedup(client *redis.Client) *RedisDedup {
	return &RedisDedup{client: client, prefix: "webhook:event:"}
}

func (d *RedisDedup) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+eventID, 1, ttl).Result()
}
