package app

import (
	"sync"
	"time"

	"tictactoe/internal/logger"
)

// DefaultTurnTimeout is how long a player may hold the turn before it is
// passed automatically.
const DefaultTurnTimeout = 10 * time.Second

// TurnTimer runs at most one countdown per session. Every Start supersedes
// the previous countdown for that session; a superseded or stopped countdown
// can still be mid-fire, so the expiry handler must check Current under the
// session lock before acting.
type TurnTimer struct {
	timeout time.Duration

	mu      sync.Mutex
	timers  map[string]*turnEntry
	gen     uint64
	expire  func(sessionID string, gen uint64)
	stopped bool
}

type turnEntry struct {
	gen   uint64
	timer *time.Timer
}

// NewTurnTimer creates a timer with the given window. Non-positive windows
// fall back to DefaultTurnTimeout.
func NewTurnTimer(timeout time.Duration) *TurnTimer {
	if timeout <= 0 {
		timeout = DefaultTurnTimeout
	}
	return &TurnTimer{
		timeout: timeout,
		timers:  make(map[string]*turnEntry),
	}
}

// Timeout returns the countdown window.
func (t *TurnTimer) Timeout() time.Duration {
	return t.timeout
}

// OnExpire sets the handler invoked when a countdown fires.
func (t *TurnTimer) OnExpire(fn func(sessionID string, gen uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expire = fn
}

// Start (re)arms the countdown for sessionID and returns its generation.
func (t *TurnTimer) Start(sessionID string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return 0
	}
	if prev, ok := t.timers[sessionID]; ok {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timers[sessionID] = &turnEntry{
		gen:   gen,
		timer: time.AfterFunc(t.timeout, func() { t.fire(sessionID, gen) }),
	}
	return gen
}

// Stop cancels the countdown for sessionID, if any.
func (t *TurnTimer) Stop(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.timers[sessionID]; ok {
		prev.timer.Stop()
		delete(t.timers, sessionID)
	}
}

// StopIf cancels the countdown only if gen is still the live generation.
func (t *TurnTimer) StopIf(sessionID string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.timers[sessionID]; ok && prev.gen == gen {
		prev.timer.Stop()
		delete(t.timers, sessionID)
	}
}

// Current reports whether gen is the live countdown for sessionID.
func (t *TurnTimer) Current(sessionID string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.timers[sessionID]
	return ok && e.gen == gen
}

// Active returns the number of armed countdowns.
func (t *TurnTimer) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// StopAll cancels every countdown and refuses new ones.
func (t *TurnTimer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, e := range t.timers {
		e.timer.Stop()
		delete(t.timers, id)
	}
}

func (t *TurnTimer) fire(sessionID string, gen uint64) {
	t.mu.Lock()
	fn := t.expire
	t.mu.Unlock()
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn timer: expiry handler panicked", logger.Fields{
				"game":  sessionID,
				"panic": r,
			})
		}
	}()
	fn(sessionID, gen)
}
