package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// CombinedCacheKey is the single key the aggregation result lives under.
const CombinedCacheKey = "combined-videos"

// Cache stores combined video lists with an expiry. A read at or after the
// expiry is a miss.
type Cache interface {
	Get(ctx context.Context, key string, now time.Time) ([]VideoItem, bool)
	Put(ctx context.Context, key string, videos []VideoItem, now time.Time, ttl time.Duration)
}

type cacheEntry struct {
	videos    []VideoItem
	expiresAt time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry)}
}

// Get returns the stored slice itself, so callers within the TTL observe the
// same backing array.
func (c *MemoryCache) Get(_ context.Context, key string, now time.Time) ([]VideoItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.videos, true
}

// Put stores videos until now+ttl.
func (c *MemoryCache) Put(_ context.Context, key string, videos []VideoItem, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{videos: videos, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// TieredCache keeps an in-process L1 in front of a redis L2, so a restarted
// instance can still serve the last combined list.
type TieredCache struct {
	l1  *MemoryCache
	rdb *redis.Client
}

// NewTieredCache wraps rdb. A nil rdb degrades to memory only.
func NewTieredCache(rdb *redis.Client) *TieredCache {
	return &TieredCache{l1: NewMemoryCache(), rdb: rdb}
}

// ConnectRedis parses url and pings the server. It returns nil when url is
// empty or the server is unreachable; the caller then runs without L2.
func ConnectRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		_ = rdb.Close()
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

type redisEntry struct {
	Videos    []VideoItem `json:"videos"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Get checks L1, then L2. An L2 hit repopulates L1 with the remaining TTL.
func (c *TieredCache) Get(ctx context.Context, key string, now time.Time) ([]VideoItem, bool) {
	if videos, ok := c.l1.Get(ctx, key, now); ok {
		return videos, true
	}
	if c.rdb == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Debug("cache: L2 get failed", slog.Any("error", err))
		}
		return nil, false
	}
	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if !now.Before(entry.ExpiresAt) {
		return nil, false
	}
	c.l1.Put(ctx, key, entry.Videos, now, entry.ExpiresAt.Sub(now))
	return entry.Videos, true
}

// Put writes both tiers.
func (c *TieredCache) Put(ctx context.Context, key string, videos []VideoItem, now time.Time, ttl time.Duration) {
	c.l1.Put(ctx, key, videos, now, ttl)
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(redisEntry{Videos: videos, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Debug("cache: L2 set failed", slog.Any("error", err))
	}
}

// Stats counts cache hits and misses for the metrics endpoint.
type Stats struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Hits returns the hit counter.
func (s *Stats) Hits() int64 { return s.hits.Load() }

// Misses returns the miss counter.
func (s *Stats) Misses() int64 { return s.misses.Load() }
