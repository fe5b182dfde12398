// Package dedup remembers recently seen keys so redelivered broker messages
// can be skipped before they reach storage.
package dedup

import (
	"fmt"
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
	now  func() time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max), now: time.Now}
}

// WithClock replaces the time source; meant for tests.
func (d *Deduper) WithClock(now func() time.Time) *Deduper {
	d.now = now
	return d
}

// ShouldProcess reports whether id was not seen within the TTL, and marks it seen.
func (d *Deduper) ShouldProcess(id string) bool {
	if id == "" {
		return true
	}
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if exp, ok := d.seen[id]; ok && now.Before(exp) {
		return false
	}
	d.seen[id] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evict(now, id)
	}
	return true
}

// evict drops expired keys, then the keys closest to expiry until the set
// is back within max. keep is never dropped.
func (d *Deduper) evict(now time.Time, keep string) {
	for k, exp := range d.seen {
		if !now.Before(exp) {
			delete(d.seen, k)
		}
	}
	for len(d.seen) > d.max {
		oldest, first := "", true
		for k, exp := range d.seen {
			if k == keep {
				continue
			}
			if first || exp.Before(d.seen[oldest]) {
				oldest, first = k, false
			}
		}
		if first {
			return
		}
		delete(d.seen, oldest)
	}
}

// Len is the number of remembered keys, expired or not.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// ReadingKey identifies a reading by node, gateway and whole second.
func ReadingKey(nodeID, gatewayID string, ts time.Time) string {
	return fmt.Sprintf("%s|%s|%d", nodeID, gatewayID, ts.Unix())
}
