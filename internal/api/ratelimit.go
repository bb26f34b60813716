// Per-caller cooldown for mutating endpoints, mirroring the in-game command
// cooldown. Simple in-memory window per remote address.
package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Cooldown tracks the last accepted mutation per caller.
type Cooldown struct {
	mu     sync.Mutex
	last   map[string]time.Time
	period time.Duration
}

// NewCooldown creates a limiter allowing one mutation per period per caller.
// A non-positive period disables the limiter.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{last: make(map[string]time.Time), period: period}
}

// Allow checks whether the caller's cooldown has elapsed, consuming it if so.
func (c *Cooldown) Allow(caller string) bool {
	if c.period <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if t, ok := c.last[caller]; ok && now.Sub(t) < c.period {
		return false
	}
	c.last[caller] = now

	// Opportunistic cleanup of stale entries.
	if len(c.last) > 4096 {
		for k, t := range c.last {
			if now.Sub(t) > 2*c.period {
				delete(c.last, k)
			}
		}
	}
	return true
}

// RetryAfter returns seconds until the caller's cooldown elapses.
func (c *Cooldown) RetryAfter(caller string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.last[caller]
	if !ok {
		return 0
	}
	remaining := c.period - time.Since(t)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// CooldownMiddleware rejects mutations arriving inside the caller's cooldown
// window with 429.
func CooldownMiddleware(c *Cooldown) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := callerIP(r)
			if !c.Allow(caller) {
				w.Header().Set("Retry-After", strconv.Itoa(c.RetryAfter(caller)))
				writeError(w, http.StatusTooManyRequests, "command cooldown active")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return xff
	}
	ip := r.RemoteAddr
	if i := strings.LastIndexByte(ip, ':'); i >= 0 {
		ip = ip[:i]
	}
	return ip
}
