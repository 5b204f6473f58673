// Package cache provides a category-scoped TTL+LRU cache for idempotent
// social-action lookups (follow status, user info, generated content).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/gopace/internal/logger"
)

const (
	// DefaultMaxSize is the default maximum number of cached entries.
	DefaultMaxSize = 1000

	// DefaultTTL applies to categories without a configured TTL.
	DefaultTTL = time.Hour

	// maxIdentifierLength is the longest identifier stored verbatim in a
	// key; longer identifiers are digested to a fixed-length hash.
	maxIdentifierLength = 100

	// sweepEvery controls the opportunistic expired-entry sweep: the sweep
	// runs once per this many Get calls.
	sweepEvery = 100
)

// Well-known cache categories.
const (
	CategoryUserInfo      = "user_info"
	CategoryTweetContent  = "tweet_content"
	CategoryFollowStatus  = "follow_status"
	CategoryRateLimits    = "rate_limits"
	CategorySearchResults = "search_results"
	CategoryMediaUpload   = "media_upload"
)

// defaultCategoryTTLs returns the built-in per-category TTL table.
func defaultCategoryTTLs() map[string]time.Duration {
	return map[string]time.Duration{
		CategoryUserInfo:      30 * time.Minute,
		CategoryTweetContent:  5 * time.Minute,
		CategoryFollowStatus:  10 * time.Minute,
		CategoryRateLimits:    time.Minute,
		CategorySearchResults: 15 * time.Minute,
		CategoryMediaUpload:   time.Hour,
	}
}

// entry is one cached value. An entry is valid iff now < expiry;
// expiry is exclusive.
type entry struct {
	value    any
	category string
	created  time.Time
	expiry   time.Time
}

// counters tracks cache effectiveness.
type counters struct {
	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

// Cache is a TTL+LRU cache. Safe for concurrent use.
type Cache struct {
	mu sync.Mutex

	clock  func() time.Time
	logger logger.Logger

	entries      map[string]*entry
	accessTimes  map[string]time.Time
	maxSize      int
	defaultTTL   time.Duration
	categoryTTLs map[string]time.Duration
	stats        counters
	getCalls     int64
}

// Option is a functional option for configuring the Cache.
type Option func(*Cache)

// WithClock overrides the cache's time source. Used in tests.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithLogger sets the cache's logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Cache) {
		c.logger = log
	}
}

// WithMaxSize overrides the maximum number of entries.
func WithMaxSize(size int) Option {
	return func(c *Cache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithDefaultTTL overrides the fallback TTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// New creates a Cache with built-in defaults.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:        time.Now,
		logger:       logger.NewNop(),
		entries:      make(map[string]*entry),
		accessTimes:  make(map[string]time.Time),
		maxSize:      DefaultMaxSize,
		defaultTTL:   DefaultTTL,
		categoryTTLs: defaultCategoryTTLs(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the cache key for a category and identifier. Structured
// identifiers are serialized with deterministic key ordering; identifiers
// longer than maxIdentifierLength bytes are digested to a fixed-length hash
// to bound key size.
func Key(category string, identifier any) string {
	var s string
	switch id := identifier.(type) {
	case string:
		s = id
	default:
		// encoding/json sorts map keys, so serialization is deterministic.
		data, err := json.Marshal(identifier)
		if err != nil {
			s = fmt.Sprintf("%v", identifier)
		} else {
			s = string(data)
		}
	}

	if len(s) > maxIdentifierLength {
		sum := sha256.Sum256([]byte(s))
		s = hex.EncodeToString(sum[:])
	}

	return category + ":" + s
}

// Get returns the cached value for a category and identifier, or false if
// absent or expired. A hit refreshes recency tracking.
func (c *Cache) Get(category string, identifier any) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.getCalls++
	if c.getCalls%sweepEvery == 0 {
		c.sweepExpiredLocked()
	}

	key := Key(category, identifier)
	now := c.clock()

	e, ok := c.entries[key]
	if ok && now.Before(e.expiry) {
		c.accessTimes[key] = now
		c.stats.hits++
		return e.value, true
	}

	c.stats.misses++
	return nil, false
}

// Set stores a value for a category and identifier. A zero ttl selects the
// category default, falling back to the global default. If the cache is at
// capacity, the least-recently-accessed entry is evicted first.
func (c *Cache) Set(category string, identifier any, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		var ok bool
		ttl, ok = c.categoryTTLs[category]
		if !ok {
			ttl = c.defaultTTL
		}
	}

	key := Key(category, identifier)
	now := c.clock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLRULocked()
	}

	c.entries[key] = &entry{
		value:    value,
		category: category,
		created:  now,
		expiry:   now.Add(ttl),
	}
	c.accessTimes[key] = now
	c.stats.sets++
}

// Delete removes an entry.
func (c *Cache) Delete(category string, identifier any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key(category, identifier)
	delete(c.entries, key)
	delete(c.accessTimes, key)
}

// ClearCategory removes all entries in one category.
func (c *Cache) ClearCategory(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if e.category == category {
			delete(c.entries, key)
			delete(c.accessTimes, key)
			removed++
		}
	}
	c.logger.Info("cleared cache category",
		logger.String("category", category),
		logger.Int("removed", removed),
	)
}

// ClearAll removes every entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.entries)
	c.entries = make(map[string]*entry)
	c.accessTimes = make(map[string]time.Time)
	c.logger.Info("cleared cache", logger.Int("removed", count))
}

// Len returns the number of entries currently stored, including any not yet
// swept expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweepExpiredLocked removes expired entries. Caller must hold c.mu.
func (c *Cache) sweepExpiredLocked() {
	now := c.clock()
	for key, e := range c.entries {
		if !now.Before(e.expiry) {
			delete(c.entries, key)
			delete(c.accessTimes, key)
		}
	}
}

// evictLRULocked evicts the single least-recently-accessed entry.
// Caller must hold c.mu.
func (c *Cache) evictLRULocked() {
	var lruKey string
	var lruTime time.Time
	first := true

	for key, at := range c.accessTimes {
		if first || at.Before(lruTime) {
			lruKey = key
			lruTime = at
			first = false
		}
	}

	if !first {
		delete(c.entries, lruKey)
		delete(c.accessTimes, lruKey)
		c.stats.evictions++
	}
}
