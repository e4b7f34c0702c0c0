package app

import (
	"sync"
	"testing"
	"time"
)

type fired struct {
	mu  sync.Mutex
	ids []string
	ch  chan uint64
}

func newFired() *fired {
	return &fired{ch: make(chan uint64, 16)}
}

func (f *fired) handler(id string, gen uint64) {
	f.mu.Lock()
	f.ids = append(f.ids, id)
	f.mu.Unlock()
	f.ch <- gen
}

func TestTurnTimer_Default(t *testing.T) {
	if got := NewTurnTimer(0).Timeout(); got != DefaultTurnTimeout {
		t.Fatalf("expected %v, got %v", DefaultTurnTimeout, got)
	}
}

func TestTurnTimer_Fires(t *testing.T) {
	tt := NewTurnTimer(10 * time.Millisecond)
	f := newFired()
	tt.OnExpire(f.handler)

	gen := tt.Start("g1")
	select {
	case got := <-f.ch:
		if got != gen {
			t.Fatalf("expected generation %d, got %d", gen, got)
		}
		if !tt.Current("g1", gen) {
			t.Fatal("fired generation should still be current until stopped")
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTurnTimer_StartSupersedes(t *testing.T) {
	tt := NewTurnTimer(30 * time.Millisecond)
	f := newFired()
	tt.OnExpire(f.handler)

	first := tt.Start("g1")
	second := tt.Start("g1")
	if first == second {
		t.Fatal("expected a new generation")
	}
	if tt.Current("g1", first) {
		t.Fatal("superseded generation reported current")
	}
	if tt.Active() != 1 {
		t.Fatalf("expected 1 active timer, got %d", tt.Active())
	}

	select {
	case got := <-f.ch:
		if got != second {
			t.Fatalf("expected only generation %d to fire, got %d", second, got)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	select {
	case got := <-f.ch:
		t.Fatalf("unexpected second expiry, generation %d", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTurnTimer_Stop(t *testing.T) {
	tt := NewTurnTimer(10 * time.Millisecond)
	f := newFired()
	tt.OnExpire(f.handler)

	gen := tt.Start("g1")
	tt.StopIf("g1", gen+1)
	if !tt.Current("g1", gen) {
		t.Fatal("StopIf with a stale generation must not cancel")
	}
	tt.Stop("g1")
	if tt.Active() != 0 {
		t.Fatalf("expected no active timers, got %d", tt.Active())
	}
	select {
	case <-f.ch:
		t.Fatal("stopped timer fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTurnTimer_StopAll(t *testing.T) {
	tt := NewTurnTimer(time.Hour)
	tt.Start("a")
	tt.Start("b")
	tt.StopAll()
	if tt.Active() != 0 {
		t.Fatalf("expected no active timers, got %d", tt.Active())
	}
	if gen := tt.Start("c"); gen != 0 || tt.Active() != 0 {
		t.Fatal("Start after StopAll should be a no-op")
	}
}

func TestTurnTimer_PanicIsContained(t *testing.T) {
	tt := NewTurnTimer(5 * time.Millisecond)
	done := make(chan struct{}, 2)
	tt.OnExpire(func(id string, _ uint64) {
		done <- struct{}{}
		if id == "bad" {
			panic("boom")
		}
	})

	tt.Start("bad")
	tt.Start("good")
	for range 2 {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("expiry handler not invoked for both sessions")
		}
	}
}
