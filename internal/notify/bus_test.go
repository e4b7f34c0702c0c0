package notify

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, s *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		if !ok {
			t.Fatal("subscription closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishFansOutPerTopic(t *testing.T) {
	b := New(4)
	defer b.Close()
	ctx := context.Background()

	a1 := b.Subscribe(ctx, GameUpdatedTopic("g1"))
	a2 := b.Subscribe(ctx, GameUpdatedTopic("g1"))
	other := b.Subscribe(ctx, GameUpdatedTopic("g2"))

	b.Publish(GameUpdatedTopic("g1"), GameUpdated, "state")

	for _, s := range []*Subscription{a1, a2} {
		ev := recv(t, s)
		if ev.Type != GameUpdated || ev.Payload != "state" || ev.Topic != "game-updated:g1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	}
	select {
	case ev := <-other.C():
		t.Fatalf("g2 subscriber got %+v", ev)
	default:
	}
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	b := New(4)
	defer b.Close()

	b.Publish(UserStatusTopic, UserStatusChanged, 1)
	s := b.Subscribe(context.Background(), UserStatusTopic)
	b.Publish(UserStatusTopic, UserStatusChanged, 2)

	if ev := recv(t, s); ev.Payload != 2 {
		t.Fatalf("expected payload 2, got %v", ev.Payload)
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := New(2)
	defer b.Close()
	s := b.Subscribe(context.Background(), "t")

	for i := range 5 {
		b.Publish("t", "n", i)
	}

	if got := recv(t, s).Payload; got != 3 {
		t.Fatalf("expected oldest surviving payload 3, got %v", got)
	}
	if got := recv(t, s).Payload; got != 4 {
		t.Fatalf("expected payload 4, got %v", got)
	}
	if b.Dropped() != 3 {
		t.Fatalf("expected 3 dropped, got %d", b.Dropped())
	}
}

func TestContextCancelEndsSubscription(t *testing.T) {
	b := New(1)
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	s := b.Subscribe(ctx, "t")
	cancel()

	select {
	case _, ok := <-s.C():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	deadline := time.Now().Add(time.Second)
	for b.Subscribers("t") != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := b.Subscribers("t"); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestAllStopsOnClose(t *testing.T) {
	b := New(4)
	s := b.Subscribe(context.Background(), "t")
	b.Publish("t", "n", "a")
	b.Publish("t", "n", "b")

	done := make(chan []any)
	go func() {
		var got []any
		for ev := range s.All() {
			got = append(got, ev.Payload)
		}
		done <- got
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()
	b.Publish("t", "n", "ignored")

	select {
	case got := <-done:
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Fatalf("unexpected sequence %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("All did not finish after Close")
	}

	s.Close()
	late := b.Subscribe(context.Background(), "t")
	if _, ok := <-late.C(); ok {
		t.Fatal("subscription on closed bus should be closed")
	}
}
