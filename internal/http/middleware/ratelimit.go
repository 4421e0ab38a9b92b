package middleware

import (
	"net/http"
	"sync"
	"time"
)

// throttleIdleEviction is how long a caller can stay idle before its
// bucket is dropped.
const throttleIdleEviction = 10 * time.Minute

// turnThrottle caps how fast a single caller can push conversation
// turns. Each caller holds a token bucket refilled at perSecond; idle
// callers are swept during normal traffic, so no background goroutine
// is needed.
type turnThrottle struct {
	mu        sync.Mutex
	callers   map[string]*turnBucket
	perSecond float64
	burst     float64
	lastSweep time.Time
	clock     func() time.Time
}

type turnBucket struct {
	tokens float64
	seen   time.Time
}

func newTurnThrottle(perSecond float64, burst int, clock func() time.Time) *turnThrottle {
	if clock == nil {
		clock = time.Now
	}
	return &turnThrottle{
		callers:   make(map[string]*turnBucket),
		perSecond: perSecond,
		burst:     float64(burst),
		lastSweep: clock(),
		clock:     clock,
	}
}

func (t *turnThrottle) allow(caller string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock()
	t.sweepLocked(now)

	b, ok := t.callers[caller]
	if !ok {
		b = &turnBucket{tokens: t.burst}
		t.callers[caller] = b
	} else {
		b.tokens += now.Sub(b.seen).Seconds() * t.perSecond
		if b.tokens > t.burst {
			b.tokens = t.burst
		}
	}
	b.seen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweepLocked drops callers idle past the eviction window. Runs at most
// once per window so steady traffic does not pay for repeated map scans.
func (t *turnThrottle) sweepLocked(now time.Time) {
	if now.Sub(t.lastSweep) < throttleIdleEviction {
		return
	}
	t.lastSweep = now
	for caller, b := range t.callers {
		if now.Sub(b.seen) > throttleIdleEviction {
			delete(t.callers, caller)
		}
	}
}

// RateLimit rejects callers that exceed perSecond sustained requests,
// with the given burst headroom, using 429 Too Many Requests. Callers
// are keyed by client IP as resolved by chi's RealIP middleware.
func RateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	t := newTurnThrottle(perSecond, burst, nil)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.Header.Get("X-Real-Ip")
			if caller == "" {
				caller = r.RemoteAddr
			}
			if !t.allow(caller) {
				http.Error(w, "Too many requests, slow down", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
