package core

// Cache is a per-invocation batch cache over one aggregate kind. Get loads
// a value through the loader at most once per key, hands the handler a
// clone, and memoizes it; every later Get for the key returns the same
// clone. Mutated clones are staged with Dirty and written back by Commit.
//
// One cache set is built fresh for every event and discarded afterward.
// If a handler fails nothing is committed, so the backing managers never
// see a half-applied event.
type Cache[K comparable, V any] struct {
	entries map[K]*cacheEntry[V]
	loader  func(K) (V, bool)
	clone   func(V) V
	store   func(V)
	loads   int64
	hits    int64
}

type cacheEntry[V any] struct {
	value V
	ok    bool
	dirty bool
}

// NewCache builds a batch cache. loader fetches from the backing manager,
// clone deep-copies a loaded value, store writes a staged value back.
func NewCache[K comparable, V any](
	loader func(K) (V, bool),
	clone func(V) V,
	store func(V),
) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*cacheEntry[V]),
		loader:  loader,
		clone:   clone,
		store:   store,
	}
}

// Get returns the cached clone for key, loading it on first access.
// The second result is false when the key does not exist in the backing
// store and nothing has been staged for it.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	if e, ok := c.entries[key]; ok {
		c.hits++
		return e.value, e.ok
	}

	c.loads++
	v, ok := c.loader(key)
	e := &cacheEntry[V]{ok: ok}
	if ok {
		e.value = c.clone(v)
	}
	c.entries[key] = e
	return e.value, e.ok
}

// Put stages a new value for a key that may not exist in the backing
// store yet. The value is marked dirty immediately.
func (c *Cache[K, V]) Put(key K, v V) {
	c.entries[key] = &cacheEntry[V]{value: v, ok: true, dirty: true}
}

// Dirty marks a previously fetched key as modified. Panics if the key was
// never loaded; staging an unloaded key is a handler bug.
func (c *Cache[K, V]) Dirty(key K) {
	e, ok := c.entries[key]
	if !ok || !e.ok {
		panic("cache: Dirty on key that was never loaded")
	}
	e.dirty = true
}

// Commit writes every dirty entry back to the backing store and returns
// the number of entries written
func (c *Cache[K, V]) Commit() int {
	n := 0
	for _, e := range c.entries {
		if e.dirty {
			c.store(e.value)
			n++
		}
	}
	return n
}

// Each calls fn for every staged entry that exists, dirty or not
func (c *Cache[K, V]) Each(fn func(V)) {
	for _, e := range c.entries {
		if e.ok {
			fn(e.value)
		}
	}
}

// Stats returns loader calls and memoized hits for metrics
func (c *Cache[K, V]) Stats() (loads, hits int64) {
	return c.loads, c.hits
}
