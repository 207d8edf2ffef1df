package recurrence

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"slices"
	"sync"
	"time"

	"github.com/samber/mo"
)

// CacheConfig holds configuration for the expansion cache
type CacheConfig struct {
	TTL             time.Duration // lifetime of a stored expansion
	MaxEntries      int           // least recently used expansions beyond this are dropped
	CleanupInterval time.Duration // period of the background sweep of expired expansions
}

// DefaultCacheConfig provides sensible defaults for expansion caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

type cacheKey [sha256.Size]byte

type cached struct {
	key       cacheKey
	result    mo.Result[[]int64]
	expiresAt time.Time
}

// ExpansionCache memoizes expansion results keyed by the complete Input, failures
// included. It is safe for concurrent use.
type ExpansionCache struct {
	mu         sync.Mutex
	index      map[cacheKey]*list.Element
	lru        *list.List // front is most recently used
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	hits       int64
	misses     int64

	stop      chan struct{}
	closeOnce sync.Once
}

// NewExpansionCache creates a cache and starts its background sweep.
// Zero config values fall back to DefaultCacheConfig.
func NewExpansionCache(config CacheConfig) *ExpansionCache {
	return newExpansionCache(config, time.Now)
}

func newExpansionCache(config CacheConfig, now func() time.Time) *ExpansionCache {
	if config.TTL <= 0 {
		config.TTL = DefaultCacheConfig.TTL
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}

	c := &ExpansionCache{
		index:      make(map[cacheKey]*list.Element),
		lru:        list.New(),
		ttl:        config.TTL,
		maxEntries: config.MaxEntries,
		now:        now,
		stop:       make(chan struct{}),
	}
	go c.sweepLoop(config.CleanupInterval)
	return c
}

// keyOf hashes every field of in. List lengths are written so that exceptions
// and additions cannot be confused with each other.
func keyOf(in Input) cacheKey {
	h := sha256.New()
	var buf [8]byte
	writeInt := func(v int64) {
		binary.BigEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(int64(len(s)))
		h.Write([]byte(s))
	}

	writeString(in.Rule)
	writeString(in.Timezone)
	if start, ok := in.Start.Get(); ok {
		h.Write([]byte{1})
		writeInt(start)
	} else {
		h.Write([]byte{0})
	}
	for _, dates := range [][]int64{in.Exceptions, in.Additions} {
		writeInt(int64(len(dates)))
		for _, d := range dates {
			writeInt(d)
		}
	}

	var key cacheKey
	copy(key[:], h.Sum(nil))
	return key
}

// Get returns a copy of the stored expansion for in, if present and not expired.
func (c *ExpansionCache) Get(in Input) (mo.Result[[]int64], bool) {
	key := keyOf(in)

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return mo.Result[[]int64]{}, false
	}
	entry := elem.Value.(*cached)
	if !c.now().Before(entry.expiresAt) {
		c.remove(elem)
		c.misses++
		return mo.Result[[]int64]{}, false
	}

	c.lru.MoveToFront(elem)
	c.hits++
	return cloneResult(entry.result), true
}

// Set stores the expansion of in, evicting the least recently used entries over the limit.
func (c *ExpansionCache) Set(in Input, result mo.Result[[]int64]) {
	key := keyOf(in)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.index[key]; ok {
		entry := elem.Value.(*cached)
		entry.result, entry.expiresAt = cloneResult(result), expiresAt
		c.lru.MoveToFront(elem)
		return
	}

	c.index[key] = c.lru.PushFront(&cached{key: key, result: cloneResult(result), expiresAt: expiresAt})
	for c.lru.Len() > c.maxEntries {
		c.remove(c.lru.Back())
	}
}

func cloneResult(r mo.Result[[]int64]) mo.Result[[]int64] {
	v, err := r.Get()
	if err != nil {
		return r
	}
	return mo.Ok(slices.Clone(v))
}

// remove drops elem. Callers hold mu.
func (c *ExpansionCache) remove(elem *list.Element) {
	c.lru.Remove(elem)
	delete(c.index, elem.Value.(*cached).key)
}

// sweep drops every expired expansion.
func (c *ExpansionCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*cached).expiresAt) {
			c.remove(elem)
		}
		elem = prev
	}
}

func (c *ExpansionCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// Close stops the background sweep and empties the cache. It may be called more than once.
func (c *ExpansionCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stop)
	})

	c.mu.Lock()
	c.index = make(map[cacheKey]*list.Element)
	c.lru.Init()
	c.mu.Unlock()
}

// CacheStats describes cache usage
type CacheStats struct {
	Entries int   // stored expansions, expired ones included until swept
	Expired int   // stored expansions past their TTL
	Hits    int64 // lookups answered from the cache
	Misses  int64 // lookups that were absent or expired
}

// Stats returns a snapshot of cache usage
func (c *ExpansionCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Entries: c.lru.Len(), Hits: c.hits, Misses: c.misses}
	now := c.now()
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if !now.Before(elem.Value.(*cached).expiresAt) {
			stats.Expired++
		}
	}
	return stats
}
