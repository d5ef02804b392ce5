package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Cache is a short-TTL read-through cache for configuration records. Concurrent misses for
// the same key share one load.
type Cache struct {
	c     *gocache.Cache
	group singleflight.Group
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{c: gocache.New(ttl, time.Minute)}
}

// Fetch returns the cached value for key or calls load and caches its result. Errors are
// never cached.
func (c *Cache) Fetch(key string, load func() (any, error)) (any, error) {
	if v, ok := c.c.Get(key); ok {
		return v, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		c.c.SetDefault(key, v)
		return v, nil
	})
	return v, err
}

func (c *Cache) Delete(key string) {
	c.c.Delete(key)
}

// DeletePrefix drops every key starting with prefix.
func (c *Cache) DeletePrefix(prefix string) {
	for k := range c.c.Items() {
		if strings.HasPrefix(k, prefix) {
			c.c.Delete(k)
		}
	}
}

func (c *Cache) Flush() {
	c.c.Flush()
}
