package server

import (
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/config"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
	"github.com/GriffinCanCode/robotdriver/internal/transport/grpcbus"
	"github.com/GriffinCanCode/robotdriver/internal/transport/memory"
	"github.com/GriffinCanCode/robotdriver/internal/transport/natsbus"
)

// DialBus opens the configured transport.
func DialBus(cfg config.TransportConfig, logger *logging.Logger, metrics *monitoring.Metrics) (transport.Bus, error) {
	switch cfg.Kind {
	case config.TransportMemory:
		logger.Info("Using in-process bus")
		return memory.New(), nil

	case config.TransportNATS:
		bus, err := natsbus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return nil, err
		}
		return bus, nil

	case config.TransportGRPC:
		bus, err := grpcbus.Dial(cfg.BusAddress,
			grpcbus.WithLogger(logger),
			grpcbus.WithMetrics(metrics),
			grpcbus.WithPublishTimeout(cfg.PublishTimeout),
			grpcbus.WithDialOptions(grpc.WithChainUnaryInterceptor(tracing.GRPCClientInterceptor())),
		)
		if err != nil {
			return nil, err
		}
		logger.Info("Using gRPC bus", zap.String("addr", cfg.BusAddress))
		return bus, nil

	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Kind)
	}
}
