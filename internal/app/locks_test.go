package app

import (
	"sync"
	"testing"
	"time"
)

func TestKeyedLocks_Release(t *testing.T) {
	k := newKeyedLocks()
	unlock := k.lock("a")
	if k.size() != 1 {
		t.Fatalf("expected 1 entry, got %d", k.size())
	}
	unlock()
	if k.size() != 0 {
		t.Fatalf("expected entries to be freed, got %d", k.size())
	}
}

func TestKeyedLocks_Exclusive(t *testing.T) {
	k := newKeyedLocks()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.lock("game")
			defer unlock()
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("expected one holder at a time, saw %d", maxSeen)
	}
	if k.size() != 0 {
		t.Fatalf("expected no leftover entries, got %d", k.size())
	}
}

func TestKeyedLocks_IndependentKeys(t *testing.T) {
	k := newKeyedLocks()
	unlockA := k.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		k.lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b blocked behind a")
	}
}

func TestKeyedLocks_LockAllOrdering(t *testing.T) {
	k := newKeyedLocks()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				k.lockAll("x", "o")()
			} else {
				k.lockAll("o", "x", "o")()
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockAll deadlocked")
	}
	if k.size() != 0 {
		t.Fatalf("expected no leftover entries, got %d", k.size())
	}
}
