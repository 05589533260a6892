// Package cache implements the rendered-file cache: a map keyed on
// (absolute path, protocol), bounded in entry count, populated once per
// key and never invalidated for the life of the process. When full, it
// evicts the entry that was inserted earliest; a cache hit does not
// refresh an entry's position, so eviction follows insertion order,
// not recency of use. The eviction bookkeeping is adapted from the
// n0x1m/gmifs response cache (a ring buffer of keys under a single
// RWMutex); coalescing of concurrent computations for the same key
// uses golang.org/x/sync/singleflight, the ecosystem's standard
// get-or-compute primitive.
package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rubyroobs/rubyshd/internal/model"
)

// Key identifies a cached rendered response.
type Key struct {
	AbsolutePath string
	Protocol     model.Protocol
}

// Cache is a fixed-capacity, coalescing, get-or-compute cache of
// *model.Response values.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*model.Response
	tracker map[int]Key
	index   int
	size    int

	group singleflight.Group
}

// New returns a Cache holding at most size entries. A non-positive size
// disables caching: nothing is ever stored, so every GetOrCompute call
// misses and runs compute.
func New(size int) *Cache {
	return &Cache{
		size:    size,
		entries: make(map[Key]*model.Response, size+1),
		tracker: make(map[int]Key, size),
	}
}

func (c *Cache) get(key Key) (*model.Response, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *Cache) put(key Key, resp *model.Response) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		if len(c.tracker) >= c.size {
			evicted := c.tracker[c.index]
			delete(c.entries, evicted)
			delete(c.tracker, c.index)
		}
		c.tracker[c.index] = key
		c.index = (c.index + 1) % c.size
	}
	c.entries[key] = resp
}

// GetOrCompute returns the cached Response for key if present;
// otherwise it calls compute exactly once even under concurrent
// requests for the same key (singleflight), caches the successful
// result, and returns it to every waiter.
func (c *Cache) GetOrCompute(key Key, compute func() (*model.Response, error)) (*model.Response, error) {
	if resp, ok := c.get(key); ok {
		return resp, nil
	}

	groupKey := key.AbsolutePath + "\x00" + key.Protocol.String()
	v, err, _ := c.group.Do(groupKey, func() (interface{}, error) {
		if resp, ok := c.get(key); ok {
			return resp, nil
		}
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.put(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Response), nil
}
