package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	EventConnected   = "connected"
	EventHeartbeat   = "heartbeat"
	EventQueueUpdate = "queue_update"
)

// Event is what a streaming connection forwards to its client.
type Event struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Subscription is one registered output channel, owned by a single streaming connection.
type Subscription struct {
	C  <-chan Event
	ch chan Event
}

// Broadcaster fans a "queue changed" signal out to every open stream in this process.
// Delivery is at-most-once: a subscriber whose buffer is full is dropped, and clients
// recover missed updates through their own periodic resync.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
	buffer int

	lastTS atomic.Int64
	now    func() time.Time

	onChange func(subscribers int)
}

type Option func(*Broadcaster)

// WithBuffer sets how many pending events a slow subscriber may hold before it is dropped.
func WithBuffer(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.buffer = n
		}
	}
}

// WithSubscriberGauge reports the registry size after every change.
func WithSubscriberGauge(fn func(subscribers int)) Option {
	return func(b *Broadcaster) { b.onChange = fn }
}

func withClock(now func() time.Time) Option {
	return func(b *Broadcaster) { b.now = now }
}

func NewBroadcaster(opts ...Option) *Broadcaster {
	b := &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: 8,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a new output channel. After Close it returns an already closed subscription.
func (b *Broadcaster) Register() *Subscription {
	ch := make(chan Event, b.buffer)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	n := len(b.subs)
	b.mu.Unlock()

	b.report(n)
	return sub
}

// Deregister removes and closes the subscription. Calling it twice is harmless.
func (b *Broadcaster) Deregister(sub *Subscription) {
	b.mu.Lock()
	if _, ok := b.subs[sub]; !ok {
		b.mu.Unlock()
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	n := len(b.subs)
	b.mu.Unlock()

	b.report(n)
}

// Notify sends one queue_update event to every registered subscriber.
func (b *Broadcaster) Notify() {
	b.notify()
}

func (b *Broadcaster) notify() int64 {
	return b.deliver(b.nextTimestamp())
}

// NotifyAt delivers an update carrying a timestamp produced elsewhere, such as another instance.
func (b *Broadcaster) NotifyAt(ts int64) {
	b.deliver(ts)
}

func (b *Broadcaster) deliver(ts int64) int64 {
	ev := Event{Type: EventQueueUpdate, Timestamp: ts}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ts
	}

	dropped := false
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subs, sub)
			close(sub.ch)
			dropped = true
		}
	}
	if dropped && b.onChange != nil {
		b.onChange(len(b.subs))
	}
	return ts
}

// nextTimestamp returns Unix milliseconds that never go backwards and never repeat,
// and are never earlier than the wall clock at the time of the call.
func (b *Broadcaster) nextTimestamp() int64 {
	now := b.now().UnixMilli()
	for {
		last := b.lastTS.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if b.lastTS.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscriber; streams see their channel closed and end.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.mu.Unlock()

	b.report(0)
}

func (b *Broadcaster) report(n int) {
	if b.onChange != nil {
		b.onChange(n)
	}
}
