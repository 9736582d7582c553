// Package cache implements the Content-Addressed Cache (C2): a concurrent
// LRU mapping string key -> bytes with per-entry TTL and optional zstd
// compression, grounded on the teacher's internal/embed.CachedEmbedder
// (hashicorp/golang-lru usage, SHA-256 key hashing) generalized from an
// embedding-only cache to the spec's general-purpose result cache.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

// compressThreshold is the payload size above which compression kicks in
// when enabled (§4.2: "if compression is enabled and payload > 1 KiB").
const compressThreshold = 1024

// Entry is a single cache value plus the bookkeeping needed to expire it.
type Entry struct {
	Bytes       []byte
	ContentType string
	Compressed  bool
	CreatedAt   time.Time
	TTL         time.Duration
}

func (e Entry) expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) > e.TTL
}

// Counters holds the hit/miss/eviction tallies a Cache exposes.
type Counters struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 when there have been no
// lookups yet.
func (c Counters) HitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}

// Options configures a Cache.
type Options struct {
	Capacity       int
	CompressionOn  bool
	DefaultTTL     time.Duration
}

// Cache is a concurrent, capacity-bounded, TTL-aware content cache.
type Cache struct {
	mu         sync.Mutex
	lru        *lru.Cache[string, Entry]
	compressOn bool
	defaultTTL time.Duration
	encoder    *zstd.Encoder
	decoder    *zstd.Decoder

	hits      uint64
	misses    uint64
	evictions uint64
}

// New builds a Cache with the given options. A non-positive Capacity
// defaults to 1024 entries.
func New(opts Options) (*Cache, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = 1024
	}
	c := &Cache{compressOn: opts.CompressionOn, defaultTTL: opts.DefaultTTL}

	backing, err := lru.NewWithEvict[string, Entry](opts.Capacity, func(_ string, _ Entry) {
		c.mu.Lock()
		c.evictions++
		c.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	c.lru = backing

	if opts.CompressionOn {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		c.encoder = enc
		c.decoder = dec
	}
	return c, nil
}

// Put stores value under key with the given content type. ttl <= 0 uses the
// cache's DefaultTTL (also possibly 0, meaning "never expires").
func (c *Cache) Put(key string, value []byte, contentType string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	entry := Entry{ContentType: contentType, CreatedAt: time.Now(), TTL: ttl}
	if c.compressOn && len(value) > compressThreshold {
		entry.Bytes = c.encoder.EncodeAll(value, nil)
		entry.Compressed = true
	} else {
		entry.Bytes = append([]byte(nil), value...)
	}

	c.lru.Add(key, entry)
}

// Get looks up key, returning the (decompressed) payload, its content type,
// and whether it was found and unexpired. An expired entry counts as a
// miss and is evicted.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	entry, ok := c.lru.Get(key)
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, "", false
	}

	if entry.expired(time.Now()) {
		c.lru.Remove(key)
		c.mu.Lock()
		c.misses++
		c.evictions++
		c.mu.Unlock()
		return nil, "", false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()

	payload := entry.Bytes
	if entry.Compressed {
		decoded, err := c.decoder.DecodeAll(entry.Bytes, nil)
		if err != nil {
			return nil, "", false
		}
		payload = decoded
	}
	return payload, entry.ContentType, true
}

// Remove deletes key if present.
func (c *Cache) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of live (possibly expired-but-not-yet-evicted)
// entries currently held.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Counters returns a snapshot of hit/miss/eviction counts.
func (c *Cache) Counters() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Hits: c.hits, Misses: c.misses, Evictions: c.evictions}
}

// Purge clears all entries and counters.
func (c *Cache) Purge() {
	c.lru.Purge()
	c.mu.Lock()
	c.hits, c.misses, c.evictions = 0, 0, 0
	c.mu.Unlock()
}
