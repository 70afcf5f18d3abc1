package rules

import (
	"sync"
	"sync/atomic"
)

// RulesCache holds the ordered list of active rules
type RulesCache interface {
	// Get retrieves cached rules, returns nil on a miss
	Get() []*Rule

	// Set replaces the cached list
	Set(rules []*Rule)
}

// CacheStats counts cache lookups
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// InMemoryRulesCache keeps a private copy of the active rule list and counts
// lookups.
type InMemoryRulesCache struct {
	rules []*Rule
	valid bool
	mu    sync.RWMutex

	hits   atomic.Int64
	misses atomic.Int64
}

func NewInMemoryRulesCache() *InMemoryRulesCache {
	return &InMemoryRulesCache{}
}

// Get returns a copy of the cached rules, or nil before the first Set
func (c *InMemoryRulesCache) Get() []*Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)

	out := make([]*Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Set stores a copy of rules
func (c *InMemoryRulesCache) Set(rules []*Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rules = make([]*Rule, len(rules))
	copy(c.rules, rules)
	c.valid = true
}

// Stats returns the hit and miss counts since creation
func (c *InMemoryRulesCache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
