// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"net"
	"sync"
	"time"

	"grimm.is/dhcpscry/internal/clock"
	"grimm.is/dhcpscry/internal/smb"
)

// ProbeCache holds prior probe outcomes keyed by IP so a burst of datagrams
// from one client costs at most one active probe per TTL window. Entries are
// overwritten unconditionally on Put and lazily evicted on the first Get
// past their expiry.
type ProbeCache struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result    *smb.ProbeResult
	expiresAt time.Time
}

// NewProbeCache creates an empty cache; a nil clk uses the wall clock.
func NewProbeCache(clk clock.Clock) *ProbeCache {
	if clk == nil {
		clk = clock.Real()
	}
	return &ProbeCache{
		clock:   clk,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached result for ip if it has not expired. An expired
// entry is evicted as a side effect.
func (c *ProbeCache) Get(ip net.IP) (*smb.ProbeResult, bool) {
	key := ip.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// Put stores a probe result for ip, overwriting any previous entry.
func (c *ProbeCache) Put(ip net.IP, result *smb.ProbeResult, ttl time.Duration) {
	key := ip.String()

	c.mu.Lock()
	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// Len reports the number of entries, expired or not.
func (c *ProbeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
