package server

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limit is a request budget of Requests per Per for one client on one route.
// Requests is also the burst size.
type Limit struct {
	Requests int
	Per      time.Duration
}

// PerMinute returns a Limit of n requests per minute.
func PerMinute(n int) Limit {
	return Limit{Requests: n, Per: time.Minute}
}

func (l Limit) valid() bool {
	return l.Requests > 0 && l.Per > 0
}

// limiterIdleTTL is how long an unused client limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type limiterKey struct {
	route  string
	client string
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter holds one token bucket per (route, client) pair.
type rateLimiter struct {
	mu        sync.Mutex
	entries   map[limiterKey]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(now func() time.Time) *rateLimiter {
	return &rateLimiter{
		entries:   make(map[limiterKey]*limiterEntry),
		lastSweep: now(),
		now:       now,
	}
}

// allow takes one token for client on route. When the bucket is empty it
// returns false and the wait until the next token.
func (rl *rateLimiter) allow(route, client string, limit Limit) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)

	key := limiterKey{route: route, client: client}
	e, ok := rl.entries[key]
	if !ok {
		every := rate.Every(limit.Per / time.Duration(limit.Requests))
		e = &limiterEntry{limiter: rate.NewLimiter(every, limit.Requests)}
		rl.entries[key] = e
	}
	e.lastSeen = now

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, limit.Per
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// sweep drops limiters idle for longer than limiterIdleTTL. It runs at most
// once per limiterIdleTTL.
func (rl *rateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < limiterIdleTTL {
		return
	}
	for k, e := range rl.entries {
		if now.Sub(e.lastSeen) > limiterIdleTTL {
			delete(rl.entries, k)
		}
	}
	rl.lastSweep = now
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
