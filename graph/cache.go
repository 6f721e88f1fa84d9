package graph

import "sync"

// Cache memoizes Compiled graphs by graphKey. Entries are immutable once
// stored, so a *Cache may be shared across every worker goroutine in a
// pool. sync.Map is used instead of a teacher-style unsynchronized map (the
// cluster/instance types the rest of this module borrows from assume
// single-goroutine access) because this is the one structure genuinely
// shared across worker goroutines.
type Cache struct {
	entries sync.Map // graphKey string -> *Compiled
}

// NewCache returns an empty compile cache. pool.Init creates one per call
// and shares it across that pool's workers.
func NewCache() *Cache {
	return &Cache{}
}

// CompileCached returns the cached Compiled graph for spec's key if present;
// otherwise it compiles spec, stores the result under its key, and returns
// it. Concurrent calls for the same key may both compile, but only one
// result is retained.
func (c *Cache) CompileCached(spec Spec) (*Compiled, error) {
	key := Key(spec)
	if v, ok := c.entries.Load(key); ok {
		return v.(*Compiled), nil
	}
	compiled, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	actual, _ := c.entries.LoadOrStore(key, compiled)
	return actual.(*Compiled), nil
}
