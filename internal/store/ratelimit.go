package store

import (
	"sync"
	"time"
)

// rateCounter enforces at most one accepted write per key per cooldown
// window. Generalized from ws/internal/single/limits/rate_limiter.go's
// sync.Map-of-per-client-state shape, but the per-entry body is a single
// last-accepted timestamp compare-and-swap rather than a token bucket: the
// spec's rule is a strict cooldown ("no two accepted writes within 1s"), not
// a burst-and-refill rate (see DESIGN.md for why golang.org/x/time/rate
// and the teacher's TokenBucket do not fit this requirement).
type rateCounter struct {
	cooldown time.Duration
	mu       sync.Mutex
	last     map[string]time.Time
}

func newRateCounter(cooldown time.Duration) *rateCounter {
	return &rateCounter{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
	}
}

// tryAccept reports whether a write to key may proceed at now. On success it
// records now as the key's last-accepted time; on rejection the counter is
// left untouched, per spec.md §4.1.1 step 2 ("RateCounter is not updated on
// rejection").
func (r *rateCounter) tryAccept(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.last[key]; ok && now.Sub(last) < r.cooldown {
		return false
	}
	r.last[key] = now
	return true
}

// evictOlderThan drops entries whose last-accepted time is older than age,
// bounding memory for keys that are no longer written (spec.md §9 notes this
// is optional and safe; it never affects correctness since a stale entry
// only makes tryAccept compute a larger, still-correct, elapsed duration).
func (r *rateCounter) evictOlderThan(age time.Duration, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, t := range r.last {
		if now.Sub(t) > age {
			delete(r.last, k)
		}
	}
}
