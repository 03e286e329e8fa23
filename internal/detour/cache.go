package detour

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"waispath/internal/types"
)

// keyPrecision quantizes coordinates to 4 decimal places (~11 m) so nearby
// fixes share cache entries without string-concatenation precision bugs.
const keyPrecision = 1e4

// coord is a quantized coordinate pair usable as a map key component.
type coord struct {
	lat int64
	lng int64
}

func quantize(loc types.Location) coord {
	return coord{
		lat: int64(loc.Latitude * keyPrecision),
		lng: int64(loc.Longitude * keyPrecision),
	}
}

// routeKey identifies one evaluation request: quantized origin, destination,
// and bypass waypoint. Explicitly typed rather than a concatenated string so
// precision mismatches fail at compile time, not silently at runtime.
type routeKey struct {
	origin   coord
	dest     coord
	waypoint coord
}

func newRouteKey(origin, dest, waypoint types.Location) routeKey {
	return routeKey{
		origin:   quantize(origin),
		dest:     quantize(dest),
		waypoint: quantize(waypoint),
	}
}

// String renders the key for singleflight grouping and log lines.
func (k routeKey) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d,%d|%d,%d|%d,%d",
		k.origin.lat, k.origin.lng,
		k.dest.lat, k.dest.lng,
		k.waypoint.lat, k.waypoint.lng,
	)
	return b.String()
}

type cacheEntry struct {
	route    *types.Route
	storedAt time.Time
}

// routeCache is a TTL-bounded, size-bounded cache of evaluated routes.
// Oldest entries are evicted first once the size cap is reached. Safe for
// concurrent use under the engine's evaluation concurrency cap.
type routeCache struct {
	mu      sync.Mutex
	entries map[routeKey]cacheEntry
	order   []routeKey // insertion order for oldest-first eviction
	ttl     time.Duration
	max     int
	now     func() time.Time
}

func newRouteCache(ttl time.Duration, max int, now func() time.Time) *routeCache {
	if now == nil {
		now = time.Now
	}
	return &routeCache{
		entries: make(map[routeKey]cacheEntry),
		ttl:     ttl,
		max:     max,
		now:     now,
	}
}

// Get returns the cached route for the key if present and fresh.
func (c *routeCache) Get(key routeKey) (*types.Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		c.dropFromOrder(key)
		return nil, false
	}
	return entry.route, true
}

// dropFromOrder removes the key's eviction-order slot. A key left behind
// after expiry would duplicate on the next Put and skew oldest-first
// eviction. Caller holds the lock.
func (c *routeCache) dropFromOrder(key routeKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Put stores a route, evicting the oldest entry when the cache is full.
func (c *routeCache) Put(key routeKey, route *types.Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cacheEntry{route: route, storedAt: c.now()}
}

// Len reports the current entry count.
func (c *routeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
