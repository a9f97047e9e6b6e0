// Package memory provides an in-process transport bus.
//
// Every subscription owns a depth-1 mailbox; publishing copies the payload
// once and never blocks on slow handlers. WithSynchronousDelivery runs
// handlers inline on the publishing goroutine instead, which makes tests
// deterministic.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/robotdriver/internal/shared/id"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// Option configures a Bus.
type Option func(*Bus)

// WithSynchronousDelivery runs handlers on the publishing goroutine. A
// handler must not publish to its own topic in this mode.
func WithSynchronousDelivery() Option {
	return func(b *Bus) { b.synchronous = true }
}

// Bus is an in-process publish-subscribe hub.
type Bus struct {
	synchronous bool

	mu     sync.RWMutex
	topics map[string]map[id.SubscriptionID]*subscription
	closed bool
}

var _ transport.Bus = (*Bus)(nil)

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{topics: make(map[string]map[id.SubscriptionID]*subscription)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Advertise returns a publisher for topic.
func (b *Bus) Advertise(topic string) (transport.Publisher, error) {
	if topic == "" {
		return nil, fmt.Errorf("empty topic")
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, transport.ErrClosed
	}
	return &publisher{bus: b, topic: topic}, nil
}

// Subscribe registers handler on topic.
func (b *Bus) Subscribe(topic string, handler transport.Handler) (transport.Subscription, error) {
	if topic == "" {
		return nil, fmt.Errorf("empty topic")
	}
	if handler == nil {
		return nil, fmt.Errorf("nil handler for %s", topic)
	}

	s := &subscription{
		id:      id.NewSubscriptionID(),
		topic:   topic,
		bus:     b,
		handler: handler,
	}
	if !b.synchronous {
		s.mailbox = transport.NewMailbox(handler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		if s.mailbox != nil {
			s.mailbox.Close()
		}
		return nil, transport.ErrClosed
	}
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[id.SubscriptionID]*subscription)
		b.topics[topic] = subs
	}
	subs[s.id] = s
	return s, nil
}

// Publish fans payload out to every subscriber of topic.
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := make([]byte, len(payload))
	copy(msg, payload)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return transport.ErrClosed
	}
	targets := make([]*subscription, 0, len(b.topics[topic]))
	for _, s := range b.topics[topic] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(msg)
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close detaches every subscription. Later calls fail with
// transport.ErrClosed.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*subscription
	for _, subs := range b.topics {
		for _, s := range subs {
			all = append(all, s)
		}
	}
	b.topics = make(map[string]map[id.SubscriptionID]*subscription)
	b.mu.Unlock()

	for _, s := range all {
		s.stop()
	}
	return nil
}

func (b *Bus) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[s.topic]; ok {
		delete(subs, s.id)
		if len(subs) == 0 {
			delete(b.topics, s.topic)
		}
	}
}

type publisher struct {
	bus   *Bus
	topic string
}

func (p *publisher) Topic() string { return p.topic }

func (p *publisher) Publish(ctx context.Context, payload []byte) error {
	return p.bus.Publish(ctx, p.topic, payload)
}

type subscription struct {
	id      id.SubscriptionID
	topic   string
	bus     *Bus
	handler transport.Handler
	mailbox *transport.Mailbox

	// serializes inline delivery in synchronous mode
	mu       sync.Mutex
	stopped  bool
	stopOnce sync.Once
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Unsubscribe() error {
	s.bus.remove(s)
	s.stop()
	return nil
}

func (s *subscription) deliver(payload []byte) {
	if s.mailbox != nil {
		s.mailbox.Put(payload)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.handler(payload)
	}
}

func (s *subscription) stop() {
	s.stopOnce.Do(func() {
		if s.mailbox != nil {
			s.mailbox.Close()
			return
		}
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
	})
}
