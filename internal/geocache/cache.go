// Package geocache memoizes reverse geocoding results for the duration of a run.
package geocache

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hotspot-etl/internal/observability"
)

// Geocoder wraps a domain.Geocoder with an in-memory LRU cache keyed by
// coordinates rounded to five decimal places (about a metre).
type Geocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// New creates a cache decorator around a geocoder. metrics may be nil.
func New(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *Geocoder {
	return &Geocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	key := cacheKey(lat, lon)
	if addr, ok := g.cache.get(key); ok {
		g.observe("hit")
		return addr, nil
	}
	g.observe("miss")

	addr, err := g.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return addr, err
	}
	// Only cache usable results so an empty answer can be asked again.
	if addr.Locality() != "" {
		g.cache.put(key, addr)
	}
	return addr, nil
}

// Len returns the number of cached addresses.
func (g *Geocoder) Len() int {
	return g.cache.len()
}

func (g *Geocoder) observe(result string) {
	if g.metrics != nil {
		g.metrics.GeocodeCache.WithLabelValues(result).Inc()
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// lruCache is a simple thread-safe LRU cache of addresses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Address
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Address{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Address) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	tail := c.tail
	delete(c.entries, tail.key)
	c.remove(tail)
}
