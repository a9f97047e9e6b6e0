package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/robotdriver/internal/transport/grpcbus"
	"github.com/GriffinCanCode/robotdriver/internal/transport/memory"
)

// BusServer hosts an in-process bus over gRPC.
type BusServer struct {
	addr    string
	logger  *logging.Logger
	bus     *memory.Bus
	service *grpcbus.Server
	tracer  *tracing.Tracer
	grpc    *grpc.Server
}

// NewBusServer prepares a bus server listening on addr.
func NewBusServer(addr string, logger *logging.Logger, metrics *monitoring.Metrics) *BusServer {
	bus := memory.New()
	service := grpcbus.NewServer(bus, logger, metrics)
	tracer := tracing.New("bus", logger)

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.GRPCUnaryInterceptor(tracer)),
		grpc.ChainStreamInterceptor(tracing.GRPCStreamInterceptor(tracer)),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: false,
		}),
	)
	service.Register(srv)

	return &BusServer{addr: addr, logger: logger, bus: bus, service: service, tracer: tracer, grpc: srv}
}

// Serve accepts connections on lis until ctx is done.
func (b *BusServer) Serve(ctx context.Context, lis net.Listener) error {
	b.logger.Info("Starting bus server", zap.String("addr", lis.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- b.grpc.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		b.Close()
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("bus server failed: %w", err)
	}
}

// Run listens on the configured address and serves until ctx is done.
func (b *BusServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", b.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", b.addr, err)
	}
	return b.Serve(ctx, lis)
}

// Close ends open streams and stops the server.
func (b *BusServer) Close() {
	b.logger.Info("Shutting down bus server")
	b.service.Shutdown()
	b.grpc.GracefulStop()
	b.tracer.Close()
	_ = b.bus.Close()
}
