package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a bounded key/value store with per-entry TTL. Least recently used
// entries are evicted once the capacity is reached; expired entries are
// dropped lazily on read.
type Cache struct {
	size int
	lru  *lru.Cache[string, entry]
	now  func() time.Time
}

type Option func(*Cache)

// WithClock replaces the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(size int, opts ...Option) (*Cache, error) {
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	c := &Cache{
		size: size,
		lru:  l,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) Get(key string) (any, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl keeps the entry until it is
// evicted or deleted.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.lru.Add(key, e)
}

func (c *Cache) Delete(key string) {
	c.lru.Remove(key)
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Cap() int { return c.size }

func (c *Cache) Purge() { c.lru.Purge() }
