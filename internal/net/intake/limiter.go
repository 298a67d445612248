package intake

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default per-connection message budgets.
const (
	DefaultMoveLimit   = 50
	DefaultActionLimit = 10
	rateWindow         = time.Second
)

// Window counts messages in a fixed one-second window that restarts the
// first time a message arrives more than a second after the window opened.
type Window struct {
	limit int
	count int
	start time.Time
}

// NewWindow returns a window admitting limit messages per second. A
// non-positive limit admits everything.
func NewWindow(limit int) Window {
	return Window{limit: limit}
}

// Allow records one message at now and reports whether it fits the budget.
func (w *Window) Allow(now time.Time) bool {
	if w.limit <= 0 {
		return true
	}
	if w.start.IsZero() || now.Sub(w.start) > rateWindow {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= w.limit
}

// Count reports how many messages the current window has seen.
func (w *Window) Count() int {
	return w.count
}

// Limit reports the window's budget.
func (w *Window) Limit() int {
	return w.limit
}

// Limiter is the per-connection rate state. It is constructed at admission
// and owned by the connection's read goroutine.
type Limiter struct {
	Moves   Window
	Actions Window
}

// NewLimiter builds a limiter with independent movement and action budgets.
func NewLimiter(moveLimit, actionLimit int) *Limiter {
	return &Limiter{
		Moves:   NewWindow(moveLimit),
		Actions: NewWindow(actionLimit),
	}
}

// AllowMove consumes movement budget.
func (l *Limiter) AllowMove(now time.Time) bool {
	if l == nil {
		return true
	}
	return l.Moves.Allow(now)
}

// AllowAction consumes action budget (casts and class selection).
func (l *Limiter) AllowAction(now time.Time) bool {
	if l == nil {
		return true
	}
	return l.Actions.Allow(now)
}

// AdmissionLimiter throttles websocket handshakes per remote IP with a token
// bucket.
type AdmissionLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewAdmissionLimiter allows perSecond handshakes per IP with the given
// burst. A non-positive perSecond disables throttling.
func NewAdmissionLimiter(perSecond float64, burst int) *AdmissionLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &AdmissionLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether ip may open another connection at now.
func (a *AdmissionLimiter) Allow(ip string, now time.Time) bool {
	if a == nil || a.limit <= 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	v, ok := a.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(a.limit, a.burst)}
		a.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Prune forgets visitors idle since before cutoff and returns how many were
// removed.
func (a *AdmissionLimiter) Prune(cutoff time.Time) int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	removed := 0
	for ip, v := range a.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(a.visitors, ip)
			removed++
		}
	}
	return removed
}

// Len reports how many IPs are tracked.
func (a *AdmissionLimiter) Len() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.visitors)
}
