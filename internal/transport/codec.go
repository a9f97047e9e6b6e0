package transport

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
)

// MalformedPayloadError reports a payload that could not be decoded into the
// channel's message type.
type MalformedPayloadError struct {
	Topic string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload on %s: %v", e.Topic, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// Validator is implemented by messages with constraints beyond JSON shape.
type Validator interface {
	Validate() error
}

// Encode serializes a message.
func Encode(msg any) ([]byte, error) {
	return sonic.Marshal(msg)
}

// Decode deserializes a payload from topic into msg, returning
// *MalformedPayloadError on any failure.
func Decode(topic string, payload []byte, msg any) error {
	if err := sonic.Unmarshal(payload, msg); err != nil {
		return &MalformedPayloadError{Topic: topic, Err: err}
	}
	if v, ok := msg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &MalformedPayloadError{Topic: topic, Err: err}
		}
	}
	return nil
}

// TypedPublisher encodes messages of type T before publishing.
type TypedPublisher[T any] struct {
	pub Publisher
}

// NewPublisher advertises topic for messages of type T.
func NewPublisher[T any](adv Advertiser, topic string) (*TypedPublisher[T], error) {
	pub, err := adv.Advertise(topic)
	if err != nil {
		return nil, fmt.Errorf("failed to advertise %s: %w", topic, err)
	}
	return &TypedPublisher[T]{pub: pub}, nil
}

// Topic returns the advertised topic.
func (p *TypedPublisher[T]) Topic() string {
	return p.pub.Topic()
}

// Publish encodes and publishes msg.
func (p *TypedPublisher[T]) Publish(ctx context.Context, msg T) error {
	payload, err := Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", p.pub.Topic(), err)
	}
	return p.pub.Publish(ctx, payload)
}

// Subscribe registers handle for decoded messages of type T. Payloads that
// fail to decode go to onMalformed, if set, and never reach handle.
func Subscribe[T any](sub Subscriber, topic string, handle func(T), onMalformed func(error)) (Subscription, error) {
	s, err := sub.Subscribe(topic, func(payload []byte) {
		var msg T
		if err := Decode(topic, payload, &msg); err != nil {
			if onMalformed != nil {
				onMalformed(err)
			}
			return
		}
		handle(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return s, nil
}
