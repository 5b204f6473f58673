package cache

import (
	"math"
)

// Statistics is a point-in-time view of cache effectiveness.
type Statistics struct {
	TotalItems int            `json:"total_items"`
	MaxSize    int            `json:"max_size"`
	HitRate    float64        `json:"hit_rate"`
	Hits       int64          `json:"hits"`
	Misses     int64          `json:"misses"`
	Sets       int64          `json:"sets"`
	Evictions  int64          `json:"evictions"`
	Categories map[string]int `json:"categories"`
}

// Statistics returns a snapshot of cache statistics. Expired entries are
// swept before counting.
func (c *Cache) Statistics() Statistics {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepExpiredLocked()

	var hitRate float64
	if total := c.stats.hits + c.stats.misses; total > 0 {
		hitRate = float64(c.stats.hits) / float64(total) * 100
		hitRate = math.Round(hitRate*100) / 100
	}

	categories := make(map[string]int)
	for _, e := range c.entries {
		categories[e.category]++
	}

	return Statistics{
		TotalItems: len(c.entries),
		MaxSize:    c.maxSize,
		HitRate:    hitRate,
		Hits:       c.stats.hits,
		Misses:     c.stats.misses,
		Sets:       c.stats.sets,
		Evictions:  c.stats.evictions,
		Categories: categories,
	}
}
