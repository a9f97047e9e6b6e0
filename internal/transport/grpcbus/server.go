package grpcbus

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/shared/id"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// Server relays remote publishes onto a local bus and streams local topics to
// remote subscribers. The local bus should deliver asynchronously; a stream
// that cannot keep up then only loses superseded messages.
type Server struct {
	bus     transport.Bus
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	publishers map[string]transport.Publisher

	done     chan struct{}
	shutdown sync.Once
}

var _ busService = (*Server)(nil)

// NewServer creates a bus server. logger and metrics may be nil.
func NewServer(bus transport.Bus, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		bus:        bus,
		logger:     logger.Named("grpcbus"),
		metrics:    metrics,
		publishers: make(map[string]transport.Publisher),
		done:       make(chan struct{}),
	}
}

// Register adds the bus service to a gRPC server.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	r.RegisterService(&serviceDesc, s)
}

// Shutdown ends every open Subscribe stream. Call it before
// grpc.Server.GracefulStop, which waits for streams to return.
func (s *Server) Shutdown() {
	s.shutdown.Do(func() { close(s.done) })
}

// Publish implements the unary Publish RPC.
func (s *Server) Publish(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	topic := topicFromIncoming(ctx)
	if topic == "" {
		return nil, status.Error(codes.InvalidArgument, "missing "+topicMetadataKey+" metadata")
	}

	pub, err := s.publisher(topic)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := pub.Publish(ctx, in.GetValue()); err != nil {
		s.metrics.RecordPublishFailure(topic)
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Subscribe implements the server-streaming Subscribe RPC. The stream stays
// open until the client cancels or the server shuts down.
func (s *Server) Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStream) error {
	topic := in.GetValue()
	if topic == "" {
		return status.Error(codes.InvalidArgument, "topic is required")
	}

	ctx := stream.Context()
	logger := s.logger.With(zap.String("topic", topic), zap.String("stream_id", id.NewStreamID().String()))
	sub, err := s.bus.Subscribe(topic, func(payload []byte) {
		if err := stream.SendMsg(wrapperspb.Bytes(payload)); err != nil {
			logger.Debug("Failed to forward message", zap.Error(err))
		}
	})
	if err != nil {
		return toStatus(err)
	}

	s.metrics.AddBusSubscriptions(1)
	logger.Debug("Remote subscriber attached")
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("Failed to detach remote subscriber", zap.Error(err))
		}
		s.metrics.AddBusSubscriptions(-1)
		logger.Debug("Remote subscriber detached")
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-s.done:
		return status.Error(codes.Unavailable, "bus server shutting down")
	}
}

func (s *Server) publisher(topic string) (transport.Publisher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pub, ok := s.publishers[topic]; ok {
		return pub, nil
	}
	pub, err := s.bus.Advertise(topic)
	if err != nil {
		return nil, err
	}
	s.publishers[topic] = pub
	return pub, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, transport.ErrClosed):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
