package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	robothttp "github.com/GriffinCanCode/robotdriver/internal/api/http"
	"github.com/GriffinCanCode/robotdriver/internal/api/middleware"
	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/config"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router    *gin.Engine
	http      *http.Server
	bus       transport.Bus
	consumer  *driver.Consumer
	simulator *Simulator
	tracer    *tracing.Tracer
	logger    *logging.Logger
	config    *config.Config
	metrics   *monitoring.Metrics
}

// NewServer dials the transport, creates the consumer and builds the API.
func NewServer(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	logger.Info("Initializing robotdriver API",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("prefix", cfg.Robot.Prefix),
		zap.String("transport", cfg.Transport.Kind),
	)

	bus, err := DialBus(cfg.Transport, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}

	consumer, err := driver.NewConsumerOn(bus, cfg.Robot.Prefix,
		driver.WithLogger(logger),
		driver.WithMetrics(metrics),
		driver.WithPublishTimeout(cfg.Transport.PublishTimeout),
	)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	s := &Server{
		bus:      bus,
		consumer: consumer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
		tracer:   tracing.New("api", logger),
	}

	// Nothing else can reach an in-process bus, so the simulator lives here.
	if cfg.Transport.Kind == config.TransportMemory {
		s.simulator, err = NewSimulator(cfg, bus, logger, metrics)
		if err != nil {
			s.tracer.Close()
			_ = consumer.Close()
			_ = bus.Close()
			return nil, err
		}
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	var rateLimit *middleware.RateLimitConfig
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		rateLimit = &rl
	}

	s.router = robothttp.NewRouter(consumer, robothttp.RouterConfig{
		Prefix:    consumer.Topics().Prefix,
		Logger:    logger,
		Metrics:   metrics,
		Tracer:    s.tracer,
		CORS:      middleware.DefaultCORSConfig(),
		RateLimit: rateLimit,
	})
	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Consumer returns the driver consumer behind the API.
func (s *Server) Consumer() *driver.Consumer {
	return s.consumer
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve serves the API on lis until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	if s.simulator != nil {
		if err := s.simulator.Start(ctx); err != nil {
			return err
		}
	}

	s.logger.Info("Starting HTTP server", zap.String("addr", lis.Addr().String()))
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		return s.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		_ = s.Close()
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Close gracefully shuts down the server
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	s.tracer.Close()
	if s.simulator != nil {
		if err := s.simulator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop simulator: %w", err))
		}
	}
	if err := s.consumer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := s.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
