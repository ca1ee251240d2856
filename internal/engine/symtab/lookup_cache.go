package symtab

import (
	"container/list"
	"duchain/internal/engine/ident"
	"duchain/internal/shared/observability"
	"sync"
)

// lookupCache keeps recent Lookup results of the SQLite backend keyed by
// identifier key, evicting the least recently used identifier once full.
// Entries are copied in and out so callers never share a handle slice.
type lookupCache struct {
	mu       sync.Mutex
	capacity int
	byKey    map[string]*list.Element
	recent   *list.List // front = most recently looked up
	hits     uint64
}

type cachedLookup struct {
	key     string
	handles []IndexedDeclaration
}

func newLookupCache(capacity int) *lookupCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &lookupCache{
		capacity: capacity,
		byKey:    make(map[string]*list.Element, capacity),
		recent:   list.New(),
	}
}

// get returns the handles cached for id. A hit counts toward
// duchain_index_cache_hits_total.
func (c *lookupCache) get(id ident.QualifiedIdentifier) ([]IndexedDeclaration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byKey[id.Key()]
	if !ok {
		return nil, false
	}
	c.recent.MoveToFront(el)
	c.hits++
	observability.IndexCacheHitsTotal.Inc()
	return cloneHandles(el.Value.(*cachedLookup).handles), true
}

// put records the handles for id. An empty result is cached too; the next
// write to the index drops it.
func (c *lookupCache) put(id ident.QualifiedIdentifier, handles []IndexedDeclaration) {
	key := id.Key()
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[key]; ok {
		c.recent.MoveToFront(el)
		el.Value.(*cachedLookup).handles = cloneHandles(handles)
		return
	}
	if c.recent.Len() >= c.capacity {
		if oldest := c.recent.Back(); oldest != nil {
			c.recent.Remove(oldest)
			delete(c.byKey, oldest.Value.(*cachedLookup).key)
		}
	}
	c.byKey[key] = c.recent.PushFront(&cachedLookup{key: key, handles: cloneHandles(handles)})
}

// forget drops the cached result for id after an Insert under that key.
func (c *lookupCache) forget(id ident.QualifiedIdentifier) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byKey[id.Key()]; ok {
		c.recent.Remove(el)
		delete(c.byKey, id.Key())
	}
}

// reset drops every entry after a transactional write.
func (c *lookupCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recent.Init()
	c.byKey = make(map[string]*list.Element, c.capacity)
}

func (c *lookupCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

func (c *lookupCache) hitCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}
