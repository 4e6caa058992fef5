// Package typecache memoizes per-position oracle lookups. Oracle queries are
// slow and rate-sensitive, so results (including "no answer") are kept per
// file with a TTL and a global estimated-memory budget. Under pressure whole
// files are evicted together in least-recently-accessed order; a file's
// entries are never partially dropped.
package typecache

import (
	"sort"
	"sync"
	"time"

	"flowlens/internal/shared/observability"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultBudgetBytes = 10 << 20 // 10 MB
	// Flat per-entry cost estimate: position key, type string, bookkeeping.
	DefaultEntryCostBytes = 512

	// After eviction, usage is brought down to this fraction of the budget
	// so a single insert does not immediately re-trigger eviction.
	evictTargetFraction = 0.8
)

type entry struct {
	value    *string // nil means the oracle had no answer
	storedAt time.Time
}

type fileCache struct {
	entries      map[string]entry
	lastAccessed time.Time
}

type Config struct {
	TTL            time.Duration
	BudgetBytes    int64
	EntryCostBytes int64
}

func (c *Config) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.BudgetBytes <= 0 {
		c.BudgetBytes = DefaultBudgetBytes
	}
	if c.EntryCostBytes <= 0 {
		c.EntryCostBytes = DefaultEntryCostBytes
	}
}

// Cache is safe for use from a single logical thread of control; the mutex
// guards the read-modify-write sequences of a multi-threaded host.
type Cache struct {
	mu    sync.Mutex
	files map[string]*fileCache
	cfg   Config
	now   func() time.Time
}

func New(cfg Config) *Cache {
	cfg.applyDefaults()
	return &Cache{
		files: make(map[string]*fileCache),
		cfg:   cfg,
		now:   time.Now,
	}
}

// Get returns the cached value for a position and whether it was present.
// The value itself may be nil: a remembered "oracle had no answer". Entries
// past their TTL count as misses; the sweep removes them physically.
func (c *Cache) Get(fileID, positionKey string) (*string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fc, ok := c.files[fileID]
	if !ok {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	e, ok := fc.entries[positionKey]
	if !ok || c.now().Sub(e.storedAt) > c.cfg.TTL {
		observability.CacheMissesTotal.Inc()
		return nil, false
	}
	fc.lastAccessed = c.now()
	observability.CacheHitsTotal.Inc()
	return e.value, true
}

// Put stores a lookup result, creating the file's cache on first write and
// evicting least-recently-accessed files if the estimated usage crosses the
// budget.
func (c *Cache) Put(fileID, positionKey string, value *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fc, ok := c.files[fileID]
	if !ok {
		fc = &fileCache{entries: make(map[string]entry)}
		c.files[fileID] = fc
	}
	fc.entries[positionKey] = entry{value: value, storedAt: c.now()}
	fc.lastAccessed = c.now()

	if c.estimatedBytesLocked() > c.cfg.BudgetBytes {
		c.evictLocked()
	}
	observability.CacheEntries.Set(float64(c.entryCountLocked()))
}

// InvalidateFile drops everything cached for one file. Called on save or any
// other structural change; the cache never detects change itself.
func (c *Cache) InvalidateFile(fileID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, fileID)
	observability.CacheEntries.Set(float64(c.entryCountLocked()))
}

func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]*fileCache)
	observability.CacheEntries.Set(0)
}

// Sweep removes individually expired entries and drops file caches left
// empty. Cheap; callers run it opportunistically between analyses.
func (c *Cache) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.cfg.TTL)
	for fileID, fc := range c.files {
		for key, e := range fc.entries {
			if e.storedAt.Before(cutoff) {
				delete(fc.entries, key)
			}
		}
		if len(fc.entries) == 0 {
			delete(c.files, fileID)
		}
	}
	observability.CacheEntries.Set(float64(c.entryCountLocked()))
}

type Stats struct {
	NumFiles          int
	TotalEntries      int
	EstimatedMemoryMB float64
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		NumFiles:          len(c.files),
		TotalEntries:      c.entryCountLocked(),
		EstimatedMemoryMB: float64(c.estimatedBytesLocked()) / (1 << 20),
	}
}

// EntryCount returns the number of entries cached for one file, 0 when the
// file is not cached at all.
func (c *Cache) EntryCount(fileID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	fc, ok := c.files[fileID]
	if !ok {
		return 0
	}
	return len(fc.entries)
}

func (c *Cache) entryCountLocked() int {
	total := 0
	for _, fc := range c.files {
		total += len(fc.entries)
	}
	return total
}

func (c *Cache) estimatedBytesLocked() int64 {
	return int64(c.entryCountLocked()) * c.cfg.EntryCostBytes
}

// evictLocked removes whole files in least-recently-accessed order until
// usage falls to the hysteresis target. Caller must hold c.mu.
func (c *Cache) evictLocked() {
	target := int64(float64(c.cfg.BudgetBytes) * evictTargetFraction)

	type candidate struct {
		fileID       string
		lastAccessed time.Time
	}
	order := make([]candidate, 0, len(c.files))
	for fileID, fc := range c.files {
		order = append(order, candidate{fileID: fileID, lastAccessed: fc.lastAccessed})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].lastAccessed.Before(order[j].lastAccessed)
	})

	for _, cand := range order {
		if c.estimatedBytesLocked() <= target {
			break
		}
		delete(c.files, cand.fileID)
		observability.CacheEvictedFilesTotal.Inc()
	}
}
