package tracking

import (
	"context"
	"sync"
	"time"

	"github.com/vesseleye/internal/clock"
	"github.com/vesseleye/internal/metrics"
	"go.uber.org/zap"
)

// SharedStore is an optional second cache tier shared between service
// instances. RedisStore implements it.
type SharedStore interface {
	GetIdentity(ctx context.Context, imei string) (id int64, found, cached bool, err error)
	SetIdentity(ctx context.Context, imei string, id int64, found bool, ttl time.Duration) error
	ClearIdentities(ctx context.Context) error
}

type cacheEntry struct {
	externalID int64
	found      bool
	expiresAt  time.Time
}

// CacheStats is a point-in-time view of the identity cache.
type CacheStats struct {
	Total    int     `json:"total_entries"`
	Valid    int     `json:"valid_entries"`
	Expired  int     `json:"expired_entries"`
	Hits     uint64  `json:"hits"`
	Misses   uint64  `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
}

// IdentityCache maps IMEIs to external vessel ids. Resolutions live for
// ttl, misses for negativeTTL. Expiry is checked on read.
type IdentityCache struct {
	mu          sync.Mutex
	entries     map[string]cacheEntry
	ttl         time.Duration
	negativeTTL time.Duration
	clock       clock.Clock
	shared      SharedStore
	logger      *zap.Logger
	hits        uint64
	misses      uint64
}

func NewIdentityCache(ttl, negativeTTL time.Duration, clk clock.Clock, shared SharedStore, logger *zap.Logger) *IdentityCache {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityCache{
		entries:     make(map[string]cacheEntry),
		ttl:         ttl,
		negativeTTL: negativeTTL,
		clock:       clk,
		shared:      shared,
		logger:      logger,
	}
}

// Get returns the cached resolution for imei. cached reports whether a
// live entry existed; found is false for a cached miss.
func (c *IdentityCache) Get(ctx context.Context, imei string) (id int64, found, cached bool) {
	now := c.clock.Now()

	c.mu.Lock()
	entry, ok := c.entries[imei]
	if ok && now.Before(entry.expiresAt) {
		c.hits++
		c.mu.Unlock()
		metrics.IdentityCacheLookups.WithLabelValues("hit").Inc()
		return entry.externalID, entry.found, true
	}
	if ok {
		delete(c.entries, imei)
	}
	c.mu.Unlock()

	if c.shared != nil {
		id, found, cached, err := c.shared.GetIdentity(ctx, imei)
		if err != nil {
			c.logger.Warn("shared identity cache lookup failed", zap.String("imei", imei), zap.Error(err))
		} else if cached {
			ttl := c.ttl
			if !found {
				ttl = c.negativeTTL
			}
			c.mu.Lock()
			c.entries[imei] = cacheEntry{externalID: id, found: found, expiresAt: now.Add(ttl)}
			c.hits++
			c.mu.Unlock()
			metrics.IdentityCacheLookups.WithLabelValues("hit").Inc()
			return id, found, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	metrics.IdentityCacheLookups.WithLabelValues("miss").Inc()
	return 0, false, false
}

// Set caches a successful resolution.
func (c *IdentityCache) Set(ctx context.Context, imei string, externalID int64) {
	c.put(ctx, imei, externalID, true, c.ttl)
}

// SetMiss caches the fact that the external API does not know imei.
func (c *IdentityCache) SetMiss(ctx context.Context, imei string) {
	c.put(ctx, imei, 0, false, c.negativeTTL)
}

func (c *IdentityCache) put(ctx context.Context, imei string, id int64, found bool, ttl time.Duration) {
	c.mu.Lock()
	c.entries[imei] = cacheEntry{externalID: id, found: found, expiresAt: c.clock.Now().Add(ttl)}
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.SetIdentity(ctx, imei, id, found, ttl); err != nil {
			c.logger.Warn("shared identity cache write failed", zap.String("imei", imei), zap.Error(err))
		}
	}
}

// Clear drops every entry, including the shared tier.
func (c *IdentityCache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.hits, c.misses = 0, 0
	c.mu.Unlock()

	if c.shared != nil {
		if err := c.shared.ClearIdentities(ctx); err != nil {
			c.logger.Warn("failed to clear shared identity cache", zap.Error(err))
		}
	}
}

func (c *IdentityCache) Stats() CacheStats {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Total: len(c.entries), Hits: c.hits, Misses: c.misses}
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			stats.Valid++
		} else {
			stats.Expired++
		}
	}
	if lookups := c.hits + c.misses; lookups > 0 {
		stats.HitRatio = float64(c.hits) / float64(lookups)
	}
	return stats
}
