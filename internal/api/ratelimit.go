package api

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter enforces fixed-window per-client request quotas. Windows are
// one minute, keyed by route name and client IP.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	start time.Time
	count int
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{
		windows: make(map[string]*rateWindow),
		now:     time.Now,
	}
}

// Limit returns middleware that rejects clients exceeding perMinute
// requests on the named route with 429.
func (l *rateLimiter) Limit(route string, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(route, clientIP(r), perMinute) {
				w.Header().Set("Retry-After", "60")
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *rateLimiter) allow(route, client string, perMinute int) bool {
	key := route + "|" + client
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	win, ok := l.windows[key]
	if !ok || now.Sub(win.start) >= time.Minute {
		l.windows[key] = &rateWindow{start: now, count: 1}
		l.pruneLocked(now)
		return true
	}

	if win.count >= perMinute {
		return false
	}
	win.count++
	return true
}

// pruneLocked drops expired windows so the map does not grow unbounded.
// Called with the mutex held, only on the window-rollover path.
func (l *rateLimiter) pruneLocked(now time.Time) {
	if len(l.windows) < 10000 {
		return
	}
	for k, win := range l.windows {
		if now.Sub(win.start) >= time.Minute {
			delete(l.windows, k)
		}
	}
}

func clientIP(r *http.Request) string {
	// middleware.RealIP has already rewritten RemoteAddr when the
	// forwarding headers are present.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
