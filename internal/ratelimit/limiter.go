// Package ratelimit implements an in-memory, per-key token-bucket limiter
// with opportunistic eviction of idle buckets. It backs both the per-user
// command flood control of the bot and the per-client limit of the ops API.
//
// The limiter is process-local; each bot instance enforces its own budget.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// sweepEvery is the number of lookups between idle-bucket sweeps.
const sweepEvery = 5000

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed hands out one token bucket per key.
//
// This type is safe for concurrent use.
type Keyed struct {
	rps   rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	visitors map[string]*visitor
	lookups  uint64

	now func() time.Time
}

// New constructs a Keyed limiter refilling rps tokens per second up to burst.
// burst <= 0 is coerced to 1. Buckets idle for ttl are evicted; ttl <= 0
// defaults to 10 minutes.
func New(rps float64, burst int, ttl time.Duration) *Keyed {
	if burst <= 0 {
		burst = 1
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Keyed{
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether an event for key may happen now.
func (k *Keyed) Allow(key string) bool {
	return k.get(key).AllowN(k.now(), 1)
}

// Len returns the number of live buckets.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.visitors)
}

// Sweep evicts buckets idle for at least ttl and returns how many went.
func (k *Keyed) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.sweepLocked(k.now())
}

func (k *Keyed) sweepLocked(now time.Time) int {
	n := 0
	for key, v := range k.visitors {
		if now.Sub(v.lastSeen) >= k.ttl {
			delete(k.visitors, key)
			n++
		}
	}
	k.lookups = 0
	return n
}

// get returns (and touches) the bucket for key. The periodic sweep runs
// before the lookup so a stale bucket is replaced rather than refreshed.
func (k *Keyed) get(key string) *rate.Limiter {
	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	k.lookups++
	if k.lookups >= sweepEvery {
		k.sweepLocked(now)
	}
	if v, ok := k.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(k.rps, k.burst)
	k.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}
