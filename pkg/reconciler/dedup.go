package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupTTL is how long a delivered event id is remembered.
const DefaultDedupTTL = 72 * time.Hour

// Deduplicator remembers provider event ids that were already processed.
// It is a fast path in front of the ledger's own idempotency guards.
type Deduplicator interface {
	// Claim reports whether the event is seen for the first time.
	Claim(ctx context.Context, providerName, eventID string) (bool, error)
	// Release forgets a claim so a redelivery is processed again.
	Release(ctx context.Context, providerName, eventID string) error
}

func dedupKey(providerName, eventID string) string {
	return "event:" + providerName + ":" + eventID
}

// RedisDeduplicator claims event ids with SET NX and a TTL.
type RedisDeduplicator struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisDeduplicator panics when client is nil. A non-positive ttl uses DefaultDedupTTL.
func NewRedisDeduplicator(client redis.Cmdable, ttl time.Duration) *RedisDeduplicator {
	if client == nil {
		panic("reconciler: redis client is required")
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduplicator{client: client, ttl: ttl}
}

func (d *RedisDeduplicator) Claim(ctx context.Context, providerName, eventID string) (bool, error) {
	return d.client.SetNX(ctx, dedupKey(providerName, eventID), time.Now().Unix(), d.ttl).Result()
}

func (d *RedisDeduplicator) Release(ctx context.Context, providerName, eventID string) error {
	return d.client.Del(ctx, dedupKey(providerName, eventID)).Err()
}

// memorySweepSize is the map size at which expired claims are dropped.
const memorySweepSize = 1024

// MemoryDeduplicator is an in-process Deduplicator for tests and single-node runs.
type MemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDeduplicator returns an empty deduplicator. A non-positive ttl uses DefaultDedupTTL.
func NewMemoryDeduplicator(ttl time.Duration) *MemoryDeduplicator {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &MemoryDeduplicator{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (d *MemoryDeduplicator) Claim(_ context.Context, providerName, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	key := dedupKey(providerName, eventID)
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	if len(d.seen) >= memorySweepSize {
		for k, exp := range d.seen {
			if !now.Before(exp) {
				delete(d.seen, k)
			}
		}
	}
	d.seen[key] = now.Add(d.ttl)
	return true, nil
}

func (d *MemoryDeduplicator) Release(_ context.Context, providerName, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, dedupKey(providerName, eventID))
	return nil
}
