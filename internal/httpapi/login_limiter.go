package httpapi

import (
	"sync"
	"time"
)

// loginLimiter throttles credential-guessing bursts per IP and per
// email before the persistent lockout counters in the credential store
// engage. Fixed windows keep the bookkeeping to one counter per key.
type loginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	windows map[string]*attemptWindow
}

type attemptWindow struct {
	start time.Time
	count int
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{
		window:  5 * time.Minute,
		max:     10,
		windows: make(map[string]*attemptWindow),
	}
}

func (l *loginLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.windows[key]
	if w == nil || now.Sub(w.start) >= l.window {
		l.prune(now)
		l.windows[key] = &attemptWindow{start: now, count: 1}
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// prune drops expired windows. Runs only when a key rolls over, so
// requests inside an open window never pay a full map scan.
func (l *loginLimiter) prune(now time.Time) {
	for k, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, k)
		}
	}
}
