package schema

import (
	"container/list"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sync"
)

// CacheKey builds the schema cache key from spec §4.6: domain(url) plus the
// first 10 hex characters of a content hash of the HTML.
func CacheKey(pageURL, html string) string {
	sum := sha1.Sum([]byte(html))
	hash := hex.EncodeToString(sum[:])[:10]
	return domainOf(pageURL) + ":" + hash
}

func domainOf(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Cache is a bounded LRU schema cache. Every read re-validates and
// re-corrects the cached entry (spec §4.6: "cached schemas are re-validated
// on read") so a cache hit never returns a schema the validator no longer
// considers valid. Bounded size is a SPEC_FULL supplement (§C): the Python
// original's equivalent cache is unbounded within a process, an operational
// hazard this implementation closes with a simple LRU since nothing in the
// teacher or pack ships one for this narrow a need.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key    string
	schema Schema
}

// NewCache builds a Cache bounded at capacity entries; capacity <= 0 means
// unbounded, mirroring the most permissive possible behavior.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *Cache) Get(key string) (Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return Schema{}, false
	}
	c.ll.MoveToFront(el)
	entry := el.Value.(*cacheEntry)
	corrected, _ := Correct(entry.schema)
	entry.schema = corrected
	return corrected, true
}

func (c *Cache) Put(key string, s Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*cacheEntry).schema = s
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: key, schema: s})
	c.items[key] = el

	if c.capacity > 0 && c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
