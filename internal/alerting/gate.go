package alerting

import (
	"time"
)

// Gate tracks per-symbol notification cooldowns so a hot spread does not spam
// the alert channel. State is process-local and in-memory: it does not survive
// restart and is not shared between instances. Entries are never evicted; the
// map is bounded by the configured symbol universe.
//
// The gate is touched only by the scan goroutine, so it carries no lock.
type Gate struct {
	cooldown time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

// NewGate constructs a cooldown gate.
func NewGate(cooldown time.Duration) *Gate {
	return &Gate{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Admit reports whether an alert for symbol is eligible right now: either no
// alert was ever sent for it, or the cooldown has fully elapsed since the last
// confirmed send. Admit itself records nothing; callers must confirm dispatch
// via MarkNotified so that a failed send does not consume the window.
func (g *Gate) Admit(symbol string) bool {
	lastAt, ok := g.last[symbol]
	if !ok {
		return true
	}
	return g.now().Sub(lastAt) >= g.cooldown
}

// MarkNotified records a confirmed alert dispatch for symbol.
func (g *Gate) MarkNotified(symbol string) {
	g.last[symbol] = g.now()
}

// Cooldown returns the configured cooldown duration.
func (g *Gate) Cooldown() time.Duration { return g.cooldown }
