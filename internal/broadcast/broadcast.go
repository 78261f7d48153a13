// Package broadcast implements the event broadcaster: a single-publisher,
// multi-consumer channel with a bounded per-subscriber backlog. Slow
// consumers fall behind and receive a Lagged marker instead of blocking the
// publisher.
package broadcast

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const defaultBacklog = 256

// EventType tags the broadcaster's event variants.
type EventType string

const (
	EventSessionCreated      EventType = "SessionCreated"
	EventSessionUpdated      EventType = "SessionUpdated"
	EventMessageReceived     EventType = "MessageReceived"
	EventMessageSent         EventType = "MessageSent"
	EventToolExecuted        EventType = "ToolExecuted"
	EventChannelStatusChanged EventType = "ChannelStatusChanged"
	EventHeartbeat           EventType = "Heartbeat"
)

// SessionUpdateKind discriminates the payload shape of a SessionUpdated event.
type SessionUpdateKind string

const (
	UpdateStateChanged  SessionUpdateKind = "state-changed"
	UpdateMessageCount  SessionUpdateKind = "message-count"
	UpdateEnded         SessionUpdateKind = "ended"
)

// Event is the payload handed to Broadcast; Type discriminates the variant
// and Data carries its JSON-able body.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

// Envelope wraps a published event with an id and timestamp.
type Envelope struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Event     Event     `json:"event"`
}

// Lagged is delivered on a subscriber's channel in place of the envelopes it
// missed, reporting how many were skipped.
type Lagged struct {
	Skipped int
}

// Item is what arrives on a subscription channel: exactly one of Envelope
// or Lagged is non-nil/non-zero.
type Item struct {
	Envelope *Envelope
	Lagged   *Lagged
}

type subscriber struct {
	ch      chan Item
	backlog int
	mu      sync.Mutex
	pending int // envelopes dropped since the last successful send, for Lagged reporting
}

// Broadcaster is safe for concurrent use: one publisher, many subscribers.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[int]*subscriber
	nextID  int
	backlog int
}

func New() *Broadcaster {
	return &Broadcaster{subs: make(map[int]*subscriber), backlog: defaultBacklog}
}

// NewWithBacklog overrides the default 256-envelope per-subscriber backlog.
func NewWithBacklog(backlog int) *Broadcaster {
	if backlog <= 0 {
		backlog = defaultBacklog
	}
	return &Broadcaster{subs: make(map[int]*subscriber), backlog: backlog}
}

// Subscription is a receiver handle returned by Subscribe.
type Subscription struct {
	id int
	b  *Broadcaster
	C  <-chan Item
}

// Subscribe returns a receiver handle that yields envelopes in publish
// order. The caller must eventually call Unsubscribe.
func (b *Broadcaster) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Item, b.backlog), backlog: b.backlog}
	b.subs[id] = sub
	return &Subscription{id: id, b: b, C: sub.ch}
}

func (s *Subscription) Unsubscribe() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	if sub, ok := s.b.subs[s.id]; ok {
		close(sub.ch)
		delete(s.b.subs, s.id)
	}
}

func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Broadcast wraps event in an envelope and publishes it to every active
// subscriber, returning the count that received it (including those
// recorded as Lagged). A subscriber whose channel is full is sent a Lagged
// marker instead of blocking this call.
func (b *Broadcaster) Broadcast(event Event) (Envelope, int) {
	env := Envelope{ID: randomID(), Timestamp: time.Now().UTC(), Event: event}

	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, sub := range b.subs {
		sub.mu.Lock()
		select {
		case sub.ch <- Item{Envelope: &env}:
			if sub.pending > 0 {
				// Best-effort: a prior Lagged was already queued ahead of
				// this envelope, so the subscriber will see it in order.
				sub.pending = 0
			}
			count++
		default:
			sub.pending++
			select {
			case sub.ch <- Item{Lagged: &Lagged{Skipped: sub.pending}}:
				sub.pending = 0
				count++
			default:
				// Backlog still full even for the lag marker; subscriber
				// is far enough behind that we drop silently this round.
			}
		}
		sub.mu.Unlock()
	}
	return env, count
}

// Len reports the current number of active subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
