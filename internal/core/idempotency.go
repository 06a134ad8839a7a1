package core

import (
	"container/list"
	"fmt"
)

// DBIdempotencyChecker is the Postgres-side dedup lookup.
type DBIdempotencyChecker interface {
	IsDuplicate(eventType string, idempotencyKey string) (bool, error)
}

// IdempotencyChecker deduplicates events in two tiers: an in-memory LRU
// over recent composite keys, backed by the event log in Postgres for
// keys that aged out of memory.
type IdempotencyChecker struct {
	lru       *IdempotencyLRU
	dbChecker DBIdempotencyChecker

	lruHits int64
	dbHits  int64
	dbErrs  int64
}

func NewIdempotencyChecker(capacity int, dbChecker DBIdempotencyChecker) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       NewIdempotencyLRU(capacity),
		dbChecker: dbChecker,
	}
}

// IsDuplicate reports whether the event was already processed.
func (ic *IdempotencyChecker) IsDuplicate(eventType string, idempotencyKey string) bool {
	key := fmt.Sprintf("%s:%s", eventType, idempotencyKey)

	if ic.lru.Contains(key) {
		ic.lruHits++
		return true
	}
	if ic.dbChecker == nil {
		return false
	}

	isDup, err := ic.dbChecker.IsDuplicate(eventType, idempotencyKey)
	if err != nil {
		// Assume not duplicate rather than stall the stream; the
		// unique index on the event log is the backstop.
		ic.dbErrs++
		return false
	}
	if isDup {
		ic.dbHits++
		ic.lru.Add(key)
	}
	return isDup
}

// MarkProcessed records the key after the event commits.
func (ic *IdempotencyChecker) MarkProcessed(eventType string, idempotencyKey string) {
	ic.lru.Add(fmt.Sprintf("%s:%s", eventType, idempotencyKey))
}

// Counters returns LRU hits, DB hits, and DB lookup errors.
func (ic *IdempotencyChecker) Counters() (lruHits, dbHits, dbErrs int64) {
	return ic.lruHits, ic.dbHits, ic.dbErrs
}

// IdempotencyLRU holds recently seen composite keys. Not thread-safe;
// only touched from the single-threaded engine loop.
type IdempotencyLRU struct {
	capacity  int
	index     map[string]*list.Element
	order     *list.List // front = most recent, Element.Value = string key
	evictions int64
}

func NewIdempotencyLRU(capacity int) *IdempotencyLRU {
	return &IdempotencyLRU{
		capacity: capacity,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Contains reports whether the key is cached and promotes it.
func (lru *IdempotencyLRU) Contains(key string) bool {
	elem, ok := lru.index[key]
	if ok {
		lru.order.MoveToFront(elem)
	}
	return ok
}

// Add inserts the key, evicting the oldest entry when full.
func (lru *IdempotencyLRU) Add(key string) {
	if elem, ok := lru.index[key]; ok {
		lru.order.MoveToFront(elem)
		return
	}
	lru.index[key] = lru.order.PushFront(key)
	if lru.order.Len() > lru.capacity {
		oldest := lru.order.Back()
		lru.order.Remove(oldest)
		delete(lru.index, oldest.Value.(string))
		lru.evictions++
	}
}

// WarmFromKeys preloads composite keys so a restart does not pay the
// cold-path DB lookup for recently processed events.
func (lru *IdempotencyLRU) WarmFromKeys(keys []string) {
	for _, key := range keys {
		lru.Add(key)
	}
}

func (lru *IdempotencyLRU) Size() int {
	return lru.order.Len()
}

func (lru *IdempotencyLRU) Evictions() int64 {
	return lru.evictions
}
