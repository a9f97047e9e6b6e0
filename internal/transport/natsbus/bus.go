// Package natsbus carries driver topics over NATS core subjects.
//
// Topic "arm/get/joint_states" maps to subject "arm.get.joint_states".
// NATS delivers each subscription's messages on its own goroutine; a
// depth-1 mailbox in front of the handler keeps retain-latest semantics when
// the handler falls behind.
package natsbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// Bus adapts a NATS connection to transport.Bus.
type Bus struct {
	conn   *nats.Conn
	owned  bool
	logger *logging.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ transport.Bus = (*Bus)(nil)

// Connect dials url and returns a Bus owning the connection.
func Connect(url string, logger *logging.Logger, opts ...nats.Option) (*Bus, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Named("natsbus")

	defaults := []nats.Option{
		nats.Name("robotdriver"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.Info("NATS bus connected", zap.String("url", url))

	b := New(conn, logger)
	b.owned = true
	return b, nil
}

// New wraps an existing connection. Close will not close conn.
func New(conn *nats.Conn, logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bus{
		conn:   conn,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}
}

// Subject converts a topic to a NATS subject.
func Subject(topic string) (string, error) {
	tokens := strings.FieldsFunc(topic, func(r rune) bool { return r == '/' })
	if len(tokens) == 0 {
		return "", fmt.Errorf("topic %q has no subject tokens", topic)
	}
	for _, tok := range tokens {
		if strings.ContainsAny(tok, ".*> \t\r\n") {
			return "", fmt.Errorf("topic %q: token %q is not a valid subject token", topic, tok)
		}
	}
	return strings.Join(tokens, "."), nil
}

// Advertise returns a publisher for topic.
func (b *Bus) Advertise(topic string) (transport.Publisher, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}
	if b.isClosed() {
		return nil, transport.ErrClosed
	}
	return &publisher{conn: b.conn, topic: topic, subject: subject}, nil
}

// Subscribe registers handler on topic.
func (b *Bus) Subscribe(topic string, handler transport.Handler) (transport.Subscription, error) {
	subject, err := Subject(topic)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, transport.ErrClosed
	}

	mailbox := transport.NewMailbox(handler)
	natsSub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		if mailbox.Put(m.Data) {
			b.logger.Debug("Superseded undelivered message", zap.String("subject", subject))
		}
	})
	if err != nil {
		mailbox.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s := &subscription{bus: b, topic: topic, sub: natsSub, mailbox: mailbox}
	b.subs[s] = struct{}{}
	return s, nil
}

// Close unsubscribes everything and closes the connection if the bus owns
// it.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*subscription]struct{})
	b.mu.Unlock()

	for s := range subs {
		s.stop()
	}
	if b.owned {
		b.conn.Close()
	}
	return nil
}

func (b *Bus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type publisher struct {
	conn    *nats.Conn
	topic   string
	subject string
}

func (p *publisher) Topic() string { return p.topic }

func (p *publisher) Publish(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

type subscription struct {
	bus     *Bus
	topic   string
	sub     *nats.Subscription
	mailbox *transport.Mailbox
	once    sync.Once
	err     error
}

func (s *subscription) Topic() string { return s.topic }

func (s *subscription) Unsubscribe() error {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()

	s.stop()
	return s.err
}

func (s *subscription) stop() {
	s.once.Do(func() {
		if err := s.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			s.err = fmt.Errorf("failed to unsubscribe from %s: %w", s.sub.Subject, err)
		}
		s.mailbox.Close()
	})
}
