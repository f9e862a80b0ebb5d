// Package cache provides the fingerprint-keyed answer cache. Identical
// questions over identical sources hit the cache instead of re-running
// retrieval and generation; concurrent misses for the same fingerprint
// collapse into a single computation.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fingerprint derives the cache key for one question. Two requests map to
// the same key only when they ask the same normalized question over the same
// source set with the same model and temperature. Source order is
// irrelevant; question whitespace and case are irrelevant; temperatures are
// rounded to two decimals so float noise does not split entries.
func Fingerprint(sourceIDs []string, question, model string, temperature float32) string {
	sorted := make([]string, len(sourceIDs))
	copy(sorted, sourceIDs)
	sort.Strings(sorted)

	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	h.Write([]byte(strings.ToLower(strings.TrimSpace(question))))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%.2f", temperature)

	return fmt.Sprintf("%x", h.Sum(nil))
}

// entry is one cached value with its admission time.
type entry struct {
	value    any
	storedAt time.Time
}

// Cache is a bounded, optionally expiring answer cache with per-key
// single-flight computation. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	// order tracks admission order for oldest-first eviction.
	order []string

	maxEntries int
	ttl        time.Duration

	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// New constructs a Cache. maxEntries caps the number of stored answers
// (0 means unbounded for the process lifetime); ttl expires entries after
// the given duration (0 means entries never expire).
func New(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// GetOrCompute returns the cached value for fp, or runs fn to produce it.
// Concurrent callers with the same fingerprint share one fn execution;
// callers with different fingerprints never block each other. A failed or
// cancelled fn never populates the cache, so the next caller retries.
// The boolean reports whether the value came from the cache.
func (c *Cache) GetOrCompute(ctx context.Context, fp string, fn func(context.Context) (any, error)) (any, bool, error) {
	if v, ok := c.lookup(fp); ok {
		c.hits.Add(1)
		return v, true, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(fp, func() (any, error) {
		// A concurrent caller may have stored the value between our lookup
		// and the flight starting.
		if v, ok := c.lookup(fp); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.store(fp, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

// lookup returns the live cached value for fp, pruning it if expired.
func (c *Cache) lookup(fp string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[fp]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		delete(c.entries, fp)
		c.dropFromOrder(fp)
		return nil, false
	}
	return e.value, true
}

// store admits a value, evicting the oldest entries when over capacity.
// A capacity of zero means unbounded: everything is admitted, nothing is
// evicted.
func (c *Cache) store(fp string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[fp]; !exists {
		c.order = append(c.order, fp)
	}
	c.entries[fp] = entry{value: v, storedAt: time.Now()}

	for c.maxEntries > 0 && len(c.entries) > c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// dropFromOrder removes fp from the admission-order list. Callers hold c.mu.
func (c *Cache) dropFromOrder(fp string) {
	for i, k := range c.order {
		if k == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hits reports the cumulative cache hit count.
func (c *Cache) Hits() int64 { return c.hits.Load() }

// Misses reports the cumulative cache miss count.
func (c *Cache) Misses() int64 { return c.misses.Load() }
