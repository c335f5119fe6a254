package kurir

import (
	"sync"
	"time"
)

// MemoryCache maps request fingerprints to buffered responses with TTL
// validation on lookup and LRU eviction on overflow. All state is guarded by
// a single mutex; operations never fail, a cache that cannot store simply
// degrades to a miss. Safe for concurrent use.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	store    map[string]*cacheEntry

	// LRU chain: head is most recently used, tail is the eviction candidate.
	head, tail *cacheEntry

	hits      uint64
	misses    uint64
	evictions uint64

	now func() time.Time
}

type cacheEntry struct {
	fingerprint string
	payload     *Response
	insertedAt  time.Time
	prev, next  *cacheEntry
}

// NewMemoryCache creates a cache holding at most capacity entries. A
// capacity of zero or less disables storage entirely: every Get misses and
// Put is a no-op.
func NewMemoryCache(capacity int) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		store:    make(map[string]*cacheEntry),
		now:      time.Now,
	}
}

// Get returns the cached payload for fingerprint if it is younger than ttl.
// An expired entry is removed and reported as a miss; a hit promotes the
// entry to most recently used.
func (c *MemoryCache) Get(fingerprint string, ttl time.Duration) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store[fingerprint]
	if !ok {
		c.misses++
		return nil, false
	}

	if ttl <= 0 || c.now().Sub(entry.insertedAt) >= ttl {
		c.remove(entry)
		c.misses++
		return nil, false
	}

	c.unlink(entry)
	c.pushFront(entry)
	c.hits++
	return entry.payload, true
}

// Put inserts or overwrites the entry for fingerprint, evicting the least
// recently used entry first when the cache is at capacity.
func (c *MemoryCache) Put(fingerprint string, payload *Response) {
	if payload == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		return
	}

	if existing, ok := c.store[fingerprint]; ok {
		existing.payload = payload
		existing.insertedAt = c.now()
		c.unlink(existing)
		c.pushFront(existing)
		return
	}

	for len(c.store) >= c.capacity {
		if c.tail == nil {
			break
		}
		c.remove(c.tail)
		c.evictions++
	}

	entry := &cacheEntry{
		fingerprint: fingerprint,
		payload:     payload,
		insertedAt:  c.now(),
	}
	c.store[fingerprint] = entry
	c.pushFront(entry)
}

// Delete removes the entry for fingerprint, if present.
func (c *MemoryCache) Delete(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.store[fingerprint]; ok {
		c.remove(entry)
	}
}

// Clear drops all cached entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store = make(map[string]*cacheEntry)
	c.head = nil
	c.tail = nil
}

// Len returns the current number of entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.store)
}

// Reconfigure updates the capacity, evicting from the tail if the cache now
// exceeds it.
func (c *MemoryCache) Reconfigure(capacity int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	for capacity > 0 && len(c.store) > capacity && c.tail != nil {
		c.remove(c.tail)
		c.evictions++
	}
	if capacity <= 0 && len(c.store) > 0 {
		c.store = make(map[string]*cacheEntry)
		c.head = nil
		c.tail = nil
	}
}

// CacheStats summarizes cache activity since construction.
type CacheStats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Stats returns a snapshot of cache statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:      len(c.store),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// remove deletes the entry from both the map and the chain. Caller holds mu.
func (c *MemoryCache) remove(entry *cacheEntry) {
	delete(c.store, entry.fingerprint)
	c.unlink(entry)
}

func (c *MemoryCache) unlink(entry *cacheEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else if c.head == entry {
		c.head = entry.next
	}
	if entry.next != nil {
		entry.next.prev = entry.prev
	} else if c.tail == entry {
		c.tail = entry.prev
	}
	entry.prev = nil
	entry.next = nil
}

func (c *MemoryCache) pushFront(entry *cacheEntry) {
	if c.head == nil {
		c.head = entry
		c.tail = entry
		return
	}
	entry.next = c.head
	c.head.prev = entry
	c.head = entry
}
