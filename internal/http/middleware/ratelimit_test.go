package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThrottleBurstAndRefill(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	th := newTurnThrottle(1, 2, func() time.Time { return now })

	assert.True(t, th.allow("10.0.0.1"))
	assert.True(t, th.allow("10.0.0.1"))
	assert.False(t, th.allow("10.0.0.1"))

	// Each caller has its own bucket.
	assert.True(t, th.allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, th.allow("10.0.0.1"))
	assert.False(t, th.allow("10.0.0.1"))
}

func TestThrottleEvictsIdleCallers(t *testing.T) {
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	th := newTurnThrottle(1, 1, func() time.Time { return now })

	th.allow("10.0.0.1")
	now = now.Add(2 * throttleIdleEviction)
	th.allow("10.0.0.2")

	th.mu.Lock()
	_, stale := th.callers["10.0.0.1"]
	_, fresh := th.callers["10.0.0.2"]
	th.mu.Unlock()
	assert.False(t, stale)
	assert.True(t, fresh)
}

func TestRateLimitMiddleware(t *testing.T) {
	handler := RateLimit(1, 1)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", nil)
	req.Header.Set("X-Real-Ip", "203.0.113.9")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
