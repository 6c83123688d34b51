// Package cache provides a small in-process TTL cache bounded by total
// byte size.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// TTLCache TTL 缓存. Entries expire after ttl; when the byte budget is
// exceeded the least recently used entries are evicted.
type TTLCache struct {
	ttl      time.Duration
	maxBytes int64
	now      func() time.Time

	mu    sync.Mutex
	size  int64
	order *list.List // front = most recently used
	items map[string]*list.Element
	stats CacheStats
}

// ttlItem 带 TTL 的缓存项
type ttlItem struct {
	key        string
	value      []byte
	expiration time.Time
}

// CacheStats 缓存统计
type CacheStats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Evictions int64   `json:"evictions"`
	Entries   int     `json:"entries"`
	Bytes     int64   `json:"bytes"`
	HitRate   float64 `json:"hitRate"`
}

// NewTTLCache 创建 TTL 缓存. A non-positive maxBytes means no size bound.
func NewTTLCache(ttl time.Duration, maxBytes int64) *TTLCache {
	return &TTLCache{
		ttl:      ttl,
		maxBytes: maxBytes,
		now:      time.Now,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the value for key if present and not expired.
func (c *TTLCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	item := el.Value.(*ttlItem)
	if c.now().After(item.expiration) {
		c.remove(el)
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return item.value, true
}

// Set stores value under key. Values larger than the whole budget are not
// cached.
func (c *TTLCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(value))
	if c.maxBytes > 0 && n > c.maxBytes {
		return
	}
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}

	el := c.order.PushFront(&ttlItem{
		key:        key,
		value:      value,
		expiration: c.now().Add(c.ttl),
	})
	c.items[key] = el
	c.size += n
	c.stats.Sets++

	for c.maxBytes > 0 && c.size > c.maxBytes {
		c.remove(c.order.Back())
		c.stats.Evictions++
	}
}

// Delete removes key.
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// Cleanup 清理过期项
func (c *TTLCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*ttlItem).expiration) {
			c.remove(el)
		}
		el = prev
	}
}

// Stats 获取统计
func (c *TTLCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Entries = len(c.items)
	stats.Bytes = c.size
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// remove drops el. The caller holds mu.
func (c *TTLCache) remove(el *list.Element) {
	item := el.Value.(*ttlItem)
	c.order.Remove(el)
	delete(c.items, item.key)
	c.size -= int64(len(item.value))
}
