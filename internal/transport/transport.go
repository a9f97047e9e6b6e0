package transport

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("transport closed")

// Handler receives raw payloads. The slice must be treated as read-only; it
// may be shared with other subscribers of the same message.
type Handler func(payload []byte)

// Publisher sends payloads on one topic.
type Publisher interface {
	Topic() string
	Publish(ctx context.Context, payload []byte) error
}

// Subscription is a handler registered on one topic.
type Subscription interface {
	Topic() string
	// Unsubscribe detaches the handler and waits for an in-flight delivery
	// to finish. It must not be called from inside the handler.
	Unsubscribe() error
}

// Advertiser is the publishing half of an endpoint.
type Advertiser interface {
	Advertise(topic string) (Publisher, error)
}

// Subscriber is the receiving half of an endpoint.
type Subscriber interface {
	Subscribe(topic string, handler Handler) (Subscription, error)
}

// Bus is an endpoint that can both publish and subscribe.
type Bus interface {
	Advertiser
	Subscriber
	Close() error
}
