package cache

// Typed convenience accessors for the well-known categories.

// SetFollowStatus caches whether a user is currently followed.
func (c *Cache) SetFollowStatus(username string, following bool) {
	c.Set(CategoryFollowStatus, username, following, 0)
}

// FollowStatus returns the cached follow status for a user.
func (c *Cache) FollowStatus(username string) (bool, bool) {
	v, ok := c.Get(CategoryFollowStatus, username)
	if !ok {
		return false, false
	}
	following, ok := v.(bool)
	return following, ok
}

// SetUserInfo caches profile data for a user.
func (c *Cache) SetUserInfo(username string, info map[string]any) {
	c.Set(CategoryUserInfo, username, info, 0)
}

// UserInfo returns cached profile data for a user.
func (c *Cache) UserInfo(username string) (map[string]any, bool) {
	v, ok := c.Get(CategoryUserInfo, username)
	if !ok {
		return nil, false
	}
	info, ok := v.(map[string]any)
	return info, ok
}

// SetTweetContent caches generated content under its content hash.
func (c *Cache) SetTweetContent(contentHash, content string) {
	c.Set(CategoryTweetContent, contentHash, content, 0)
}

// TweetContent returns cached generated content by content hash.
func (c *Cache) TweetContent(contentHash string) (string, bool) {
	v, ok := c.Get(CategoryTweetContent, contentHash)
	if !ok {
		return "", false
	}
	content, ok := v.(string)
	return content, ok
}

// InvalidateUser removes all cached data for one user.
func (c *Cache) InvalidateUser(username string) {
	c.Delete(CategoryUserInfo, username)
	c.Delete(CategoryFollowStatus, username)
}

// Warm pre-populates the cache from known data, keyed category → id → value.
func (c *Cache) Warm(data map[string]map[string]any) {
	for category, items := range data {
		for id, value := range items {
			c.Set(category, id, value, 0)
		}
	}
}
