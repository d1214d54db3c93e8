package reconcile

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the processed cache when no size is configured.
const DefaultCacheSize = 5000

// ProcessedCache remembers the last decision per item id. It is a
// performance aid only; the hide list stays authoritative.
//
// Reads use Peek so lookups never refresh an entry: the entry whose
// decision was recorded longest ago is evicted first.
type ProcessedCache struct {
	c   *lru.Cache[string, State]
	cap int
}

// NewProcessedCache returns a cache holding at most size entries.
func NewProcessedCache(size int) *ProcessedCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, State](size)
	if err != nil {
		// Only returned for non-positive sizes.
		panic(err)
	}
	return &ProcessedCache{c: c, cap: size}
}

// Record stores the decision for id. Re-recording an unchanged decision
// does not refresh the entry.
func (p *ProcessedCache) Record(id string, s State) {
	if prev, ok := p.c.Peek(id); ok && prev == s {
		return
	}
	p.c.Add(id, s)
}

// Lookup returns the last recorded decision for id.
func (p *ProcessedCache) Lookup(id string) (State, bool) {
	return p.c.Peek(id)
}

// Forget drops id.
func (p *ProcessedCache) Forget(id string) {
	p.c.Remove(id)
}

// Purge drops every entry.
func (p *ProcessedCache) Purge() {
	p.c.Purge()
}

// Len returns the number of cached decisions.
func (p *ProcessedCache) Len() int {
	return p.c.Len()
}

// Cap returns the configured capacity.
func (p *ProcessedCache) Cap() int {
	return p.cap
}

// Keys returns cached ids from oldest to newest.
func (p *ProcessedCache) Keys() []string {
	return p.c.Keys()
}
