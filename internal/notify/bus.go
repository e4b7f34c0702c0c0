// Package notify implements the in-process topic fan-out used to push game
// state to live observers.
package notify

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
	"time"
)

// Event types carried on the bus.
const (
	GameRequestReceived = "game-request-received"
	GameUpdated         = "game-updated"
	UserStatusChanged   = "user-status-changed"
)

// UserStatusTopic is the single global presence topic.
const UserStatusTopic = UserStatusChanged

// GameRequestTopic is where invites addressed to recipientID are published.
func GameRequestTopic(recipientID string) string {
	return GameRequestReceived + ":" + recipientID
}

// GameUpdatedTopic is where every state change of a session is published.
func GameUpdatedTopic(sessionID string) string {
	return GameUpdated + ":" + sessionID
}

// Event is one published notification.
type Event struct {
	Topic   string    `json:"topic"`
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

// Bus is a topic keyed publish/subscribe hub. Delivery is best effort: late
// subscribers get no replay and a slow subscriber loses its oldest events
// instead of stalling the publisher.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
	closed bool

	dropped atomic.Uint64
}

// New creates a Bus whose subscriptions queue up to buffer events each.
func New(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers for topic until ctx is done or Close is called.
// Subscribing to a closed bus returns an already-closed subscription.
func (b *Bus) Subscribe(ctx context.Context, topic string) *Subscription {
	s := &Subscription{
		bus:   b,
		topic: topic,
		ch:    make(chan Event, b.buffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		s.closeChan()
		return s
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[s] = struct{}{}
	b.mu.Unlock()

	stop := context.AfterFunc(ctx, s.Close)
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	return s
}

// Publish hands the event to every current subscriber of topic without
// blocking.
func (b *Bus) Publish(topic, eventType string, payload any) {
	ev := Event{Topic: topic, Type: eventType, Payload: payload, At: time.Now().UTC()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for s := range b.topics[topic] {
		if s.deliver(ev) {
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Dropped returns how many events were discarded because a queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	topics := b.topics
	b.topics = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, subs := range topics {
		for s := range subs {
			s.closeChan()
		}
	}
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[s.topic]
	if !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(b.topics, s.topic)
	}
}

// Subscription is one observer's queue on a topic.
type Subscription struct {
	bus   *Bus
	topic string
	stop  func() bool

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// C returns the event channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// All yields events until the subscription ends or the consumer stops.
func (s *Subscription) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for ev := range s.ch {
			if !yield(ev) {
				return
			}
		}
	}
}

// Close unsubscribes and closes the channel. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
	s.bus.remove(s)
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver enqueues ev, evicting the oldest queued event when full. It
// reports whether an event was dropped.
func (s *Subscription) deliver(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	dropped := false
	for {
		select {
		case s.ch <- ev:
			return dropped
		default:
		}
		select {
		case <-s.ch:
			dropped = true
		default:
		}
	}
}
