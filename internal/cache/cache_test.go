package cache_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/gopace/internal/cache"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestSetGet_RoundTrip(t *testing.T) {
	c := cache.New()

	c.Set(cache.CategoryUserInfo, "alice", map[string]any{"followers": 120}, 0)

	v, ok := c.Get(cache.CategoryUserInfo, "alice")
	require.True(t, ok)
	info, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 120, info["followers"])
}

func TestGet_MissOnAbsent(t *testing.T) {
	c := cache.New()

	_, ok := c.Get(cache.CategoryUserInfo, "nobody")
	assert.False(t, ok)
}

func TestGet_Idempotent(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.WithClock(clock.Now))

	c.Set(cache.CategoryFollowStatus, "alice", true, 10*time.Minute)

	v1, ok1 := c.Get(cache.CategoryFollowStatus, "alice")
	v2, ok2 := c.Get(cache.CategoryFollowStatus, "alice")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, v1, v2)

	// Reads do not alter expiry: still valid just before, gone just after.
	clock.Advance(10*time.Minute - time.Second)
	_, ok := c.Get(cache.CategoryFollowStatus, "alice")
	assert.True(t, ok)

	clock.Advance(2 * time.Second)
	_, ok = c.Get(cache.CategoryFollowStatus, "alice")
	assert.False(t, ok)
}

func TestExpiry_Exclusive(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.WithClock(clock.Now))

	c.Set("data", "key", "value", 600*time.Second)

	// An entry whose expiry equals now is already expired.
	clock.Advance(600 * time.Second)
	_, ok := c.Get("data", "key")
	assert.False(t, ok)
}

func TestFollowStatus_ExpiresAfterCategoryTTL(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.WithClock(clock.Now))

	// follow_status default TTL is 600s.
	c.SetFollowStatus("bob", true)

	following, ok := c.FollowStatus("bob")
	require.True(t, ok)
	assert.True(t, following)

	clock.Advance(601 * time.Second)
	_, ok = c.FollowStatus("bob")
	assert.False(t, ok)
}

func TestEviction_LeastRecentlyAccessed(t *testing.T) {
	clock := newFakeClock()
	c := cache.New(cache.WithClock(clock.Now), cache.WithMaxSize(3))

	c.Set("data", "a", 1, 0)
	clock.Advance(time.Second)
	c.Set("data", "b", 2, 0)
	clock.Advance(time.Second)
	c.Set("data", "c", 3, 0)
	clock.Advance(time.Second)

	// Touch "a" so "b" becomes the least recently accessed.
	_, ok := c.Get("data", "a")
	require.True(t, ok)
	clock.Advance(time.Second)

	c.Set("data", "d", 4, 0)

	_, ok = c.Get("data", "b")
	assert.False(t, ok, "least-recently-accessed entry should be evicted")
	for _, k := range []string{"a", "c", "d"} {
		_, ok = c.Get("data", k)
		assert.True(t, ok, "entry %q should survive eviction", k)
	}

	stats := c.Statistics()
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 3, stats.TotalItems)
}

func TestSet_OverwriteDoesNotEvict(t *testing.T) {
	c := cache.New(cache.WithMaxSize(2))

	c.Set("data", "a", 1, 0)
	c.Set("data", "b", 2, 0)
	c.Set("data", "a", 10, 0)

	stats := c.Statistics()
	assert.Zero(t, stats.Evictions)
	assert.Equal(t, 2, stats.TotalItems)
}

func TestKey_LongIdentifierDigested(t *testing.T) {
	long := strings.Repeat("x", 500)
	key := cache.Key("search_results", long)

	// category + ":" + 64 hex chars
	assert.Len(t, key, len("search_results")+1+64)

	// Deterministic: same identifier, same key.
	assert.Equal(t, key, cache.Key("search_results", long))
}

func TestKey_StructuredIdentifierDeterministic(t *testing.T) {
	a := map[string]any{"query": "golang", "lang": "en", "count": 50}
	b := map[string]any{"count": 50, "lang": "en", "query": "golang"}

	assert.Equal(t, cache.Key("search_results", a), cache.Key("search_results", b))
}

func TestStatistics(t *testing.T) {
	c := cache.New()

	c.Set(cache.CategoryUserInfo, "alice", 1, 0)
	c.Set(cache.CategoryFollowStatus, "alice", true, 0)

	_, _ = c.Get(cache.CategoryUserInfo, "alice")
	_, _ = c.Get(cache.CategoryUserInfo, "alice")
	_, _ = c.Get(cache.CategoryUserInfo, "missing")

	stats := c.Statistics()
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Sets)
	assert.InDelta(t, 66.67, stats.HitRate, 0.01)
	assert.Equal(t, 1, stats.Categories[cache.CategoryUserInfo])
	assert.Equal(t, 1, stats.Categories[cache.CategoryFollowStatus])
}

func TestStatistics_NoRequests(t *testing.T) {
	c := cache.New()
	assert.Zero(t, c.Statistics().HitRate)
}

func TestClearCategory(t *testing.T) {
	c := cache.New()

	c.Set(cache.CategoryUserInfo, "alice", 1, 0)
	c.Set(cache.CategoryUserInfo, "bob", 2, 0)
	c.Set(cache.CategoryFollowStatus, "alice", true, 0)

	c.ClearCategory(cache.CategoryUserInfo)

	_, ok := c.Get(cache.CategoryUserInfo, "alice")
	assert.False(t, ok)
	_, ok = c.Get(cache.CategoryFollowStatus, "alice")
	assert.True(t, ok)
}

func TestClearAll(t *testing.T) {
	c := cache.New()

	for i := range 10 {
		c.Set("data", fmt.Sprintf("k%d", i), i, 0)
	}
	c.ClearAll()

	assert.Zero(t, c.Len())
}

func TestInvalidateUser(t *testing.T) {
	c := cache.New()

	c.SetUserInfo("alice", map[string]any{"followers": 1})
	c.SetFollowStatus("alice", true)
	c.SetFollowStatus("bob", false)

	c.InvalidateUser("alice")

	_, ok := c.UserInfo("alice")
	assert.False(t, ok)
	_, ok = c.FollowStatus("alice")
	assert.False(t, ok)
	_, ok = c.FollowStatus("bob")
	assert.True(t, ok)
}

func TestWarm(t *testing.T) {
	c := cache.New()

	c.Warm(map[string]map[string]any{
		cache.CategoryFollowStatus: {"alice": true, "bob": false},
		cache.CategoryUserInfo:     {"alice": map[string]any{"followers": 5}},
	})

	assert.Equal(t, 3, c.Len())
	following, ok := c.FollowStatus("alice")
	require.True(t, ok)
	assert.True(t, following)
}
