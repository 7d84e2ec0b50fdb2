package cache

import (
	"container/list"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// ResultCache implements an in-memory LRU cache of compression outputs.
//
// Besides the LRU itself it keeps a Bloom filter of every key ever stored,
// including evicted ones. Lookups for keys the filter has never seen are
// answered without touching the LRU, and SeenBefore reports (with a small
// false-positive rate) whether an input was compressed at some point.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*cacheEntry
	lru      *list.List
	seen     *bloom.BloomFilter
	stats    Stats
}

type cacheEntry struct {
	key     string
	entry   *Entry
	element *list.Element
}

// NewResultCache creates a new result cache with specified capacity.
// A capacity of zero or less means unbounded.
func NewResultCache(capacity int) *ResultCache {
	expected := uint(capacity) * 10
	if capacity <= 0 || expected < 1000 {
		expected = 1000
	}
	return &ResultCache{
		capacity: capacity,
		entries:  make(map[string]*cacheEntry),
		lru:      list.New(),
		seen:     bloom.NewWithEstimates(expected, 0.01),
	}
}

// Store adds an entry to the cache
func (c *ResultCache) Store(key string, entry *Entry) error {
	if key == "" || entry == nil {
		return ErrInvalidEntry
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen.AddString(key)

	// Check if entry already exists
	if existing, exists := c.entries[key]; exists {
		existing.entry = entry
		c.lru.MoveToFront(existing.element)
		return nil
	}

	// Evict if at capacity
	if len(c.entries) >= c.capacity && c.capacity > 0 {
		c.evictOldest()
	}

	// Add new entry
	element := c.lru.PushFront(key)
	c.entries[key] = &cacheEntry{
		key:     key,
		entry:   entry,
		element: element,
	}

	return nil
}

// Get retrieves an entry from the cache
func (c *ResultCache) Get(key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seen.TestString(key) {
		c.stats.Misses++
		return nil, ErrNotFound
	}

	cached, exists := c.entries[key]
	if !exists {
		c.stats.Misses++
		return nil, ErrNotFound
	}

	// Move to front of LRU
	c.lru.MoveToFront(cached.element)
	c.stats.Hits++

	return cached.entry, nil
}

// Has checks if a key is cached
func (c *ResultCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.entries[key]
	return exists
}

// SeenBefore reports whether key was probably stored at some point, even
// if it has since been evicted.
func (c *ResultCache) SeenBefore(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.seen.TestString(key)
}

// Remove removes an entry from the cache
func (c *ResultCache) Remove(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.entries[key]
	if !exists {
		return ErrNotFound
	}

	c.lru.Remove(cached.element)
	delete(c.entries, key)

	return nil
}

// Size returns the number of cached entries
func (c *ResultCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Clear removes all entries from the cache and forgets every key
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lru = list.New()
	c.seen.ClearAll()
}

// evictOldest removes the least recently used entry
func (c *ResultCache) evictOldest() {
	oldest := c.lru.Back()
	if oldest != nil {
		key := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.entries, key)
		c.stats.Evictions++
	}
}

// GetStats returns cache statistics
func (c *ResultCache) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Create a copy to avoid data races
	return &Stats{
		Hits:      c.stats.Hits,
		Misses:    c.stats.Misses,
		Evictions: c.stats.Evictions,
		Size:      len(c.entries),
		Capacity:  c.capacity,
	}
}
