package ontology

import (
	"fmt"
	"sync"
	"time"

	"github.com/soundprediction/ontoscore/pkg/types"
)

// neighborhoodCache memoizes Neighborhood results for a short TTL so
// near-simultaneous score requests for one company share reads. A member
// index maps every object appearing in a cached view back to the views
// holding it, so a mutation anywhere in a neighborhood evicts every view
// that could have observed it.
type neighborhoodCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*cacheEntry
	members map[string]map[string]struct{} // object id -> cache keys
}

type cacheEntry struct {
	view    *types.GraphView
	expires time.Time
}

func newNeighborhoodCache(ttl time.Duration) *neighborhoodCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &neighborhoodCache{
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
		members: make(map[string]map[string]struct{}),
	}
}

// The as-of instant is part of the key: a cached current view must
// never answer a historical query, or vice versa.
func cacheKey(objectID string, hops int, asOf time.Time) string {
	return fmt.Sprintf("%s|%d|%d", objectID, hops, asOf.UnixNano())
}

func (c *neighborhoodCache) get(objectID string, hops int, asOf time.Time) (*types.GraphView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(objectID, hops, asOf)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		c.evict(key)
		return nil, false
	}
	return entry.view, true
}

func (c *neighborhoodCache) put(objectID string, hops int, asOf time.Time, view *types.GraphView) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(objectID, hops, asOf)
	c.entries[key] = &cacheEntry{view: view, expires: time.Now().Add(c.ttl)}
	for _, node := range view.Nodes {
		keys, ok := c.members[node.ID]
		if !ok {
			keys = make(map[string]struct{})
			c.members[node.ID] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *neighborhoodCache) invalidate(objectIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range objectIDs {
		for key := range c.members[id] {
			c.evict(key)
		}
		delete(c.members, id)
	}
}

// evict removes an entry and its member index rows. Caller holds the lock.
func (c *neighborhoodCache) evict(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, node := range entry.view.Nodes {
		if keys, ok := c.members[node.ID]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.members, node.ID)
			}
		}
	}
}
