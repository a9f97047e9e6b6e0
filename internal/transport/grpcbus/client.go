package grpcbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger         *logging.Logger
	metrics        *monitoring.Metrics
	publishTimeout time.Duration
	retryBackoff   time.Duration
	dialOptions    []grpc.DialOption
}

// WithLogger sets the client logger.
func WithLogger(logger *logging.Logger) ClientOption {
	return func(o *clientOptions) { o.logger = logger }
}

// WithMetrics records breaker state. Publish failures are counted by the
// caller.
func WithMetrics(metrics *monitoring.Metrics) ClientOption {
	return func(o *clientOptions) { o.metrics = metrics }
}

// WithPublishTimeout bounds each Publish RPC.
func WithPublishTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.publishTimeout = d }
}

// WithRetryBackoff sets the pause before a broken Subscribe stream is
// reopened.
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(o *clientOptions) { o.retryBackoff = d }
}

// WithDialOptions appends raw gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(o *clientOptions) { o.dialOptions = append(o.dialOptions, opts...) }
}

// Client is a transport.Bus backed by a remote bus Server.
type Client struct {
	conn    *grpc.ClientConn
	addr    string
	logger  *logging.Logger
	breaker *resilience.Breaker
	opts    clientOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	subs   map[*clientSubscription]struct{}
	closed bool
}

var _ transport.Bus = (*Client)(nil)

// Dial creates a client for the bus server at addr. The connection is
// established lazily.
func Dial(addr string, opts ...ClientOption) (*Client, error) {
	o := clientOptions{
		publishTimeout: 2 * time.Second,
		retryBackoff:   time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                60 * time.Second,
			Timeout:             20 * time.Second,
			PermitWithoutStream: false,
		}),
	}
	conn, err := grpc.NewClient(addr, append(dialOpts, o.dialOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bus: %w", err)
	}

	logger := o.logger.Named("grpcbus")
	metrics := o.metrics
	breaker := resilience.New("bus", resilience.Settings{
		MaxProbes: 1,
		Interval:  30 * time.Second,
		Timeout:   5 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsFailure: func(err error) bool {
			switch status.Code(err) {
			case codes.OK, codes.Canceled, codes.InvalidArgument:
				return false
			}
			return true
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Bus circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			metrics.SetBreakerState(name, int(to))
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:    conn,
		addr:    addr,
		logger:  logger,
		breaker: breaker,
		opts:    o,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[*clientSubscription]struct{}),
	}, nil
}

// Advertise returns a publisher for topic.
func (c *Client) Advertise(topic string) (transport.Publisher, error) {
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, transport.ErrClosed
	}
	return &clientPublisher{client: c, topic: topic}, nil
}

// Subscribe opens a Subscribe stream for topic. The stream is reopened after
// failures until Unsubscribe or Close.
func (c *Client) Subscribe(topic string, handler transport.Handler) (transport.Subscription, error) {
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, transport.ErrClosed
	}

	ctx, cancel := context.WithCancel(c.ctx)
	s := &clientSubscription{
		client:  c,
		topic:   topic,
		mailbox: transport.NewMailbox(handler),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.subs[s] = struct{}{}
	go s.run(ctx)
	return s, nil
}

// Close stops every subscription and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subs
	c.subs = make(map[*clientSubscription]struct{})
	c.mu.Unlock()

	c.cancel()
	for s := range subs {
		s.stop()
	}
	return c.conn.Close()
}

// BreakerState reports the publish circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

type clientPublisher struct {
	client *Client
	topic  string
}

func (p *clientPublisher) Topic() string { return p.topic }

func (p *clientPublisher) Publish(ctx context.Context, payload []byte) error {
	err := p.client.breaker.Do(func() error {
		ctx, cancel := context.WithTimeout(ctx, p.client.opts.publishTimeout)
		defer cancel()

		ctx = metadata.AppendToOutgoingContext(ctx, topicMetadataKey, p.topic)
		return p.client.conn.Invoke(ctx, publishMethod, wrapperspb.Bytes(payload), new(emptypb.Empty))
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}
	return nil
}

type clientSubscription struct {
	client  *Client
	topic   string
	mailbox *transport.Mailbox
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

func (s *clientSubscription) Topic() string { return s.topic }

func (s *clientSubscription) Unsubscribe() error {
	s.client.mu.Lock()
	delete(s.client.subs, s)
	s.client.mu.Unlock()

	s.stop()
	return nil
}

func (s *clientSubscription) stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.mailbox.Close()
	})
}

func (s *clientSubscription) run(ctx context.Context) {
	defer close(s.done)

	logger := s.client.logger.With(zap.String("topic", s.topic))
	for {
		err := s.receive(ctx)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("Bus stream ended, reopening", zap.Error(err))

		timer := time.NewTimer(s.client.opts.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *clientSubscription) receive(ctx context.Context) error {
	stream, err := s.client.conn.NewStream(ctx, &serviceDesc.Streams[0], subscribeMethod, grpc.WaitForReady(true))
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.SendMsg(wrapperspb.String(s.topic)); err != nil {
		return fmt.Errorf("failed to send topic: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send: %w", err)
	}

	for {
		msg := new(wrapperspb.BytesValue)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("stream closed by server")
			}
			return err
		}
		s.mailbox.Put(msg.GetValue())
	}
}
