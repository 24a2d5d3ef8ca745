package ocr

import (
	"context"
	"encoding/binary"
	"sort"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Cache memoizes results of an underlying engine. It is meant for preview
// passes that re-render unchanged pages; exports call the engine directly.
// Entries are evicted oldest-first once the capacity is reached.
type Cache struct {
	engine   Engine
	capacity int

	mu      sync.Mutex
	entries map[[blake2b.Size256]byte]Result
	order   [][blake2b.Size256]byte
	hits    int
	misses  int
}

// NewCache wraps engine. A capacity <= 0 disables caching.
func NewCache(engine Engine, capacity int) *Cache {
	return &Cache{
		engine:   engine,
		capacity: capacity,
		entries:  make(map[[blake2b.Size256]byte]Result),
	}
}

func (c *Cache) Name() string { return c.engine.Name() }

// Recognize returns the cached result for an identical input, or calls the
// wrapped engine. Failures are never cached.
func (c *Cache) Recognize(ctx context.Context, in Input) (Result, error) {
	if c.capacity <= 0 {
		return c.engine.Recognize(ctx, in)
	}
	key := cacheKey(in)
	c.mu.Lock()
	if res, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		res.InputID = in.ID
		return res, nil
	}
	c.misses++
	c.mu.Unlock()

	res, err := c.engine.Recognize(ctx, in)
	if err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		for len(c.order) >= c.capacity {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = res
	return res, nil
}

// Stats reports cache hits and misses since creation.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey digests every field of the input that influences recognition. The
// ID and page ordinal are excluded: identical images yield identical text.
func cacheKey(in Input) [blake2b.Size256]byte {
	h, _ := blake2b.New256(nil)
	writeField := func(b []byte) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	writeField(in.Image)
	writeField([]byte(in.Format))
	for _, l := range in.Languages {
		writeField([]byte(l))
	}
	var dpi [8]byte
	binary.BigEndian.PutUint64(dpi[:], uint64(in.DPI))
	h.Write(dpi[:])
	keys := make([]string, 0, len(in.Metadata))
	for k := range in.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField([]byte(k))
		writeField([]byte(in.Metadata[k]))
	}
	var key [blake2b.Size256]byte
	copy(key[:], h.Sum(nil))
	return key
}
