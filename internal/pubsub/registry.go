// Package pubsub provides many-to-many channel broadcast for nox.
//
// Channel entries are created lazily on first subscribe and removed as
// soon as their last subscriber leaves, so the registry never retains
// dead channels. Delivery into a subscriber's sink is a non-blocking
// send: a subscriber that stops draining its sink loses messages but
// can never stall a publisher.
package pubsub

import (
	"sync"

	"github.com/noxkv/nox-go/internal/telemetry/metric"
)

// DefaultSinkBuffer is the sink capacity a subscriber should allocate.
const DefaultSinkBuffer = 1024

// Message is one published payload tagged with its channel name.
type Message struct {
	Channel string
	Payload []byte
}

// Registry is the channel-name to subscriber-set mapping. It is shared
// by reference across connection goroutines and guarded by one mutex
// held only for the duration of a single operation.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*channel
	nextID   uint64
	metrics  *metric.Registry
}

type channel struct {
	subs map[uint64]chan<- Message
}

// Option configures the Registry.
type Option func(*Registry)

// WithMetrics attaches a metrics registry; dropped deliveries are
// counted through it.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{channels: make(map[string]*channel)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscription is one subscriber's membership in one channel. Messages
// published after Subscribe flow into the sink; messages published
// before it are never delivered.
type Subscription struct {
	reg  *Registry
	name string
	id   uint64

	cancelOnce sync.Once
}

// Channel returns the subscribed channel name.
func (s *Subscription) Channel() string {
	return s.name
}

// Cancel removes the subscription. When it was the channel's last
// subscriber the channel entry is removed entirely. Safe to call more
// than once.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		s.reg.unsubscribe(s.name, s.id)
	})
}

// Subscribe registers sink as a receiver for name, creating the channel
// entry if needed. The sink should be buffered (DefaultSinkBuffer);
// deliveries that would block are dropped.
func (r *Registry) Subscribe(name string, sink chan<- Message) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		ch = &channel{subs: make(map[uint64]chan<- Message)}
		r.channels[name] = ch
	}

	id := r.nextID
	r.nextID++
	ch.subs[id] = sink

	return &Subscription{reg: r, name: name, id: id}
}

// Publish broadcasts payload to every current subscriber of name and
// returns their count. An unknown channel reports zero receivers; it is
// not an error and no channel entry is created.
func (r *Registry) Publish(name string, payload []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return 0
	}

	msg := Message{Channel: name, Payload: payload}
	dropped := 0
	for _, sink := range ch.subs {
		select {
		case sink <- msg:
		default:
			// Slow-subscriber isolation: drop rather than block.
			dropped++
		}
	}
	if dropped > 0 && r.metrics != nil {
		r.metrics.DeliveriesDropped.Add(float64(dropped))
	}
	return len(ch.subs)
}

// NumChannels returns the number of live channel entries.
func (r *Registry) NumChannels() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// NumSubscribers returns the subscriber count for one channel.
func (r *Registry) NumSubscribers(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return len(ch.subs)
	}
	return 0
}

func (r *Registry) unsubscribe(name string, id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[name]
	if !ok {
		return
	}
	delete(ch.subs, id)
	if len(ch.subs) == 0 {
		delete(r.channels, name)
	}
}
