// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"sync"
	"time"

	"grimm.is/dhcpscry/internal/pipeline"
)

// History is a fixed-capacity in-memory ring of the most recent
// observations. It backs /api/history so the common "what just happened"
// query never touches the database. Implements pipeline.Sink.
type History struct {
	mu    sync.RWMutex
	ring  []*pipeline.Observation
	next  int
	count int
	total int64

	// Running aggregates over everything seen, not just what the ring
	// still holds.
	byMessageType map[string]int64
	byVendorClass map[string]int64
	macs          map[string]struct{}
}

// NewHistory creates a ring holding up to capacity observations.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1000
	}
	return &History{
		ring:          make([]*pipeline.Observation, capacity),
		byMessageType: make(map[string]int64),
		byVendorClass: make(map[string]int64),
		macs:          make(map[string]struct{}),
	}
}

// Record implements pipeline.Sink.
func (h *History) Record(obs *pipeline.Observation) error {
	h.mu.Lock()
	h.ring[h.next] = obs
	h.next = (h.next + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
	h.total++
	h.byMessageType[obs.MessageType]++
	if obs.VendorClass != "" {
		h.byVendorClass[obs.VendorClass]++
	}
	if obs.MAC != "" {
		h.macs[obs.MAC] = struct{}{}
	}
	h.mu.Unlock()
	return nil
}

// Recent returns up to limit observations, newest first. A non-positive
// limit returns everything in the ring.
func (h *History) Recent(limit int) []*pipeline.Observation {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.count
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]*pipeline.Observation, 0, n)
	for i := 1; i <= n; i++ {
		idx := (h.next - i + len(h.ring)) % len(h.ring)
		result = append(result, h.ring[idx])
	}
	return result
}

// Total reports how many observations have passed through the ring since
// start, including ones already overwritten.
func (h *History) Total() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Stats is a snapshot of the running aggregates.
type Stats struct {
	Total         int64            `json:"total"`
	UniqueMACs    int              `json:"unique_macs"`
	ByMessageType map[string]int64 `json:"by_message_type"`
	ByVendorClass map[string]int64 `json:"by_vendor_class"`
	PerMinute     int              `json:"requests_per_minute"`
}

// Snapshot returns current aggregates. The per-minute rate counts ring
// entries with timestamps inside the last minute before now, so it degrades
// to a lower bound once the ring wraps within a minute.
func (h *History) Snapshot(now time.Time) Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := Stats{
		Total:         h.total,
		UniqueMACs:    len(h.macs),
		ByMessageType: make(map[string]int64, len(h.byMessageType)),
		ByVendorClass: make(map[string]int64, len(h.byVendorClass)),
	}
	for k, v := range h.byMessageType {
		s.ByMessageType[k] = v
	}
	for k, v := range h.byVendorClass {
		s.ByVendorClass[k] = v
	}

	cutoff := now.Add(-time.Minute)
	for i := 1; i <= h.count; i++ {
		obs := h.ring[(h.next-i+len(h.ring))%len(h.ring)]
		if obs.Timestamp.Before(cutoff) {
			break
		}
		s.PerMinute++
	}
	return s
}
