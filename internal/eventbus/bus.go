// Package eventbus is the in-process pubsub for realtime events, with
// bounded per-receiver lag instead of publisher backpressure.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// DefaultCapacity is the number of in-flight events retained for receivers.
const DefaultCapacity = 1024

// Event is a named JSON payload travelling through the bus.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// LaggedError is returned by Recv when the receiver fell so far behind that
// events were overwritten before it read them.
type LaggedError struct {
	Dropped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, %d events dropped", e.Dropped)
}

// Bus is the process-wide fan-out point. Publish never blocks: events go
// into a fixed ring and every receiver reads at its own cursor. There is no
// replay; a receiver only sees events published after it subscribed.
type Bus struct {
	mu     sync.Mutex
	ring   []Event
	head   uint64 // sequence number of the next published event
	subs   int
	notify chan struct{}
}

func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ring: make([]Event, capacity), notify: make(chan struct{})}
}

// Publish delivers an event to all current receivers. It is a no-op when
// nobody is subscribed.
func (b *Bus) Publish(name string, payload json.RawMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == 0 {
		return
	}
	b.ring[b.head%uint64(len(b.ring))] = Event{Name: name, Payload: payload}
	b.head++
	close(b.notify)
	b.notify = make(chan struct{})
}

// PublishJSON marshals v and publishes it under name.
func (b *Bus) PublishJSON(name string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", name, err)
	}
	b.Publish(name, payload)
	return nil
}

// Subscribe returns a receiver positioned after the latest event.
func (b *Bus) Subscribe() *Receiver {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs++
	return &Receiver{bus: b, next: b.head}
}

// Subscribers reports the number of attached receivers.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subs
}

// Receiver is a single consumer of the bus. It is not safe for concurrent
// use by multiple goroutines.
type Receiver struct {
	bus    *Bus
	next   uint64
	closed bool
}

// Recv blocks until the next event is available or ctx is done. When older
// events were overwritten it returns a *LaggedError once and continues from
// the oldest event still retained.
func (r *Receiver) Recv(ctx context.Context) (Event, error) {
	b := r.bus
	for {
		b.mu.Lock()
		if r.closed {
			b.mu.Unlock()
			return Event{}, fmt.Errorf("receiver closed")
		}
		capacity := uint64(len(b.ring))
		if b.head > capacity && r.next < b.head-capacity {
			oldest := b.head - capacity
			dropped := oldest - r.next
			r.next = oldest
			b.mu.Unlock()
			return Event{}, &LaggedError{Dropped: dropped}
		}
		if r.next < b.head {
			ev := b.ring[r.next%capacity]
			r.next++
			b.mu.Unlock()
			return ev, nil
		}
		wait := b.notify
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-wait:
		}
	}
}

// Close detaches the receiver. Further Recv calls fail.
func (r *Receiver) Close() {
	r.bus.mu.Lock()
	defer r.bus.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.bus.subs--
}
