package inmet

import (
	"container/list"
	"context"
	"sync"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	"github.com/couchcryptid/inmet-alerts/internal/observability"
)

// CachedCityResolver wraps a CityResolver with an in-memory LRU cache.
// Only successful lookups are cached, so unknown codes and transient failures
// are retried.
type CachedCityResolver struct {
	inner   domain.CityResolver
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedCityResolver creates a cache decorator around a resolver.
func NewCachedCityResolver(inner domain.CityResolver, maxEntries int, metrics *observability.Metrics) *CachedCityResolver {
	return &CachedCityResolver{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedCityResolver) LookupCity(ctx context.Context, code string) (domain.City, error) {
	if city, ok := c.cache.get(code); ok {
		c.metrics.CityCache.WithLabelValues("hit").Inc()
		return city, nil
	}
	c.metrics.CityCache.WithLabelValues("miss").Inc()

	city, err := c.inner.LookupCity(ctx, code)
	if err != nil {
		return city, err
	}
	c.cache.put(code, city)
	return city, nil
}

// lruCache is a thread-safe LRU keyed by city code.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	code string
	city domain.City
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(maxEntries, 1),
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(code string) (domain.City, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[code]
	if !ok {
		return domain.City{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).city, true
}

func (c *lruCache) put(code string, city domain.City) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[code]; ok {
		el.Value.(*cacheEntry).city = city
		c.order.MoveToFront(el)
		return
	}

	c.entries[code] = c.order.PushFront(&cacheEntry{code: code, city: city})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).code)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
