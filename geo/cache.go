package geo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultCacheTTL is how long a cached detail level stays fresh.
	DefaultCacheTTL = 30 * time.Minute
	// DefaultCacheBudget caps the estimated bytes held across levels.
	DefaultCacheBudget = 50 * 1024 * 1024
	// evictTarget is the fraction of the budget eviction reduces to.
	evictTarget = 0.8
)

// FetchFunc loads county data for one detail level on a cache miss.
type FetchFunc func(ctx context.Context, level DetailLevel) (*CountyData, error)

type cacheEntry struct {
	data     *CountyData
	size     int64
	storedAt time.Time
}

// inflight tracks a fetch in progress so concurrent misses for the same
// level share one call.
type inflight struct {
	done chan struct{}
	data *CountyData
	err  error
}

// CacheStats is a point-in-time snapshot of cache state and counters.
type CacheStats struct {
	ItemCount   int                        `json:"itemCount"`
	TotalSize   int64                      `json:"totalSize"`
	Budget      int64                      `json:"budget"`
	Utilization float64                    `json:"utilization"`
	OldestEntry time.Time                  `json:"oldestEntry,omitempty"`
	NewestEntry time.Time                  `json:"newestEntry,omitempty"`
	Levels      map[DetailLevel]LevelStats `json:"levels"`
}

// LevelStats carries per-level hit and miss counters.
type LevelStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// DetailCache holds optimized county data keyed by detail level. Entries
// expire after a TTL and the total estimated size is kept under a byte
// budget by evicting oldest entries first. Concurrent requests for an
// uncached level coalesce into a single fetch.
type DetailCache struct {
	mu       sync.Mutex
	entries  map[DetailLevel]*cacheEntry
	inflight map[DetailLevel]*inflight
	stats    map[DetailLevel]*LevelStats

	ttl    time.Duration
	budget int64
	now    func() time.Time
	log    zerolog.Logger
}

// NewDetailCache creates a cache with the given TTL and byte budget.
// Non-positive values fall back to the defaults.
func NewDetailCache(ttl time.Duration, budget int64, log zerolog.Logger) *DetailCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if budget <= 0 {
		budget = DefaultCacheBudget
	}
	return &DetailCache{
		entries:  make(map[DetailLevel]*cacheEntry),
		inflight: make(map[DetailLevel]*inflight),
		stats:    make(map[DetailLevel]*LevelStats),
		ttl:      ttl,
		budget:   budget,
		now:      time.Now,
		log:      log,
	}
}

// Get returns the cached data for a level, fetching on miss. When several
// goroutines miss the same level at once only one fetch runs; the rest
// wait for its result. A failed fetch is not cached, so the next call
// retries.
func (c *DetailCache) Get(ctx context.Context, level DetailLevel, fetch FetchFunc) (*CountyData, error) {
	c.mu.Lock()
	if entry, ok := c.entries[level]; ok && !c.expired(entry) {
		c.levelStats(level).Hits++
		c.mu.Unlock()
		return entry.data, nil
	}
	c.levelStats(level).Misses++

	if fl, ok := c.inflight[level]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.data, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fl := &inflight{done: make(chan struct{})}
	c.inflight[level] = fl
	c.mu.Unlock()

	data, err := fetch(ctx, level)

	c.mu.Lock()
	delete(c.inflight, level)
	if err == nil {
		c.store(level, data)
	}
	c.mu.Unlock()

	fl.data = data
	fl.err = err
	close(fl.done)
	return data, err
}

// Put inserts data for a level directly, as a preload does.
func (c *DetailCache) Put(level DetailLevel, data *CountyData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(level, data)
}

// IsCached reports whether a fresh entry exists for the level.
func (c *DetailCache) IsCached(level DetailLevel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[level]
	return ok && !c.expired(entry)
}

// AvailableLevels lists the levels with fresh entries, finest first.
func (c *DetailCache) AvailableLevels() []DetailLevel {
	c.mu.Lock()
	defer c.mu.Unlock()
	var levels []DetailLevel
	for i := len(detailOrder) - 1; i >= 0; i-- {
		if entry, ok := c.entries[detailOrder[i]]; ok && !c.expired(entry) {
			levels = append(levels, detailOrder[i])
		}
	}
	return levels
}

// Clear drops every entry. Counters are kept.
func (c *DetailCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[DetailLevel]*cacheEntry)
}

// Stats snapshots the current cache state.
func (c *DetailCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeExpired()

	stats := CacheStats{
		ItemCount: len(c.entries),
		Budget:    c.budget,
		Levels:    make(map[DetailLevel]LevelStats, len(c.stats)),
	}
	for level, ls := range c.stats {
		stats.Levels[level] = *ls
	}
	for _, entry := range c.entries {
		stats.TotalSize += entry.size
		if stats.OldestEntry.IsZero() || entry.storedAt.Before(stats.OldestEntry) {
			stats.OldestEntry = entry.storedAt
		}
		if entry.storedAt.After(stats.NewestEntry) {
			stats.NewestEntry = entry.storedAt
		}
	}
	stats.Utilization = float64(stats.TotalSize) / float64(c.budget)
	return stats
}

// store inserts an entry and enforces the byte budget. Caller holds mu.
func (c *DetailCache) store(level DetailLevel, data *CountyData) {
	c.entries[level] = &cacheEntry{
		data:     data,
		size:     data.EstimatedSize(),
		storedAt: c.now(),
	}
	c.enforceBudget(level)
}

// enforceBudget drops expired entries, then oldest entries, until the
// total is within 80% of the budget. The keep level is exempt: the entry
// an insertion just created must survive that insertion even when it
// alone exceeds the target. Caller holds mu.
func (c *DetailCache) enforceBudget(keep DetailLevel) {
	c.purgeExpired()

	total := int64(0)
	for _, entry := range c.entries {
		total += entry.size
	}
	if total <= c.budget {
		return
	}

	target := int64(float64(c.budget) * evictTarget)
	levels := make([]DetailLevel, 0, len(c.entries))
	for level := range c.entries {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return c.entries[levels[i]].storedAt.Before(c.entries[levels[j]].storedAt)
	})

	for _, level := range levels {
		if total <= target {
			break
		}
		if level == keep {
			continue
		}
		total -= c.entries[level].size
		c.log.Debug().
			Str("level", string(level)).
			Int64("size", c.entries[level].size).
			Msg("evicting cached detail level")
		delete(c.entries, level)
	}
}

// purgeExpired removes stale entries. Caller holds mu.
func (c *DetailCache) purgeExpired() {
	for level, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, level)
		}
	}
}

func (c *DetailCache) expired(entry *cacheEntry) bool {
	return c.now().Sub(entry.storedAt) > c.ttl
}

func (c *DetailCache) levelStats(level DetailLevel) *LevelStats {
	ls, ok := c.stats[level]
	if !ok {
		ls = &LevelStats{}
		c.stats[level] = ls
	}
	return ls
}
