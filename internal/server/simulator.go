package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/driver"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/config"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/robot/profile"
	"github.com/GriffinCanCode/robotdriver/internal/sim"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// Simulator runs a driver provider backed by the simulated robot.
type Simulator struct {
	cfg      *config.Config
	logger   *logging.Logger
	provider *driver.Provider
	robot    *sim.Robot
	watcher  *profile.Watcher
}

// NewSimulator builds the provider on bus and loads the robot profile.
func NewSimulator(cfg *config.Config, bus transport.Bus, logger *logging.Logger, metrics *monitoring.Metrics) (*Simulator, error) {
	p := profile.Default()
	if cfg.Sim.Profile != "" {
		loaded, err := profile.Load(cfg.Sim.Profile)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	logger.Info("Loaded robot profile", zap.String("name", p.Name), zap.Int("joints", len(p.Joints)))

	provider, err := driver.NewProviderOn(bus, cfg.Robot.Prefix,
		driver.WithLogger(logger),
		driver.WithMetrics(metrics),
		driver.WithPublishTimeout(cfg.Transport.PublishTimeout),
		driver.WithJointNames(p.JointNames()...),
		driver.WithFrameID(p.FrameID()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	robot, err := sim.New(provider, p, sim.Config{
		RateHz:         cfg.Sim.RateHz,
		LimitsInterval: cfg.Sim.LimitsInterval,
		MaxVelocity:    cfg.Sim.MaxVelocity,
	}, logger)
	if err != nil {
		_ = provider.Close()
		return nil, err
	}

	s := &Simulator{cfg: cfg, logger: logger, provider: provider, robot: robot}

	if cfg.Sim.Profile != "" && cfg.Sim.Watch {
		s.watcher, err = profile.NewWatcher(cfg.Sim.Profile, s.applyProfile, logger, profile.DefaultDebounce)
		if err != nil {
			_ = provider.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Simulator) applyProfile(p *profile.Profile) {
	if err := s.robot.ApplyProfile(p); err != nil {
		s.logger.Error("Rejected robot profile", zap.Error(err))
	}
}

// Robot returns the simulated robot.
func (s *Simulator) Robot() *sim.Robot {
	return s.robot
}

// Start begins publishing and watching the profile.
func (s *Simulator) Start(ctx context.Context) error {
	if err := s.robot.Start(ctx); err != nil {
		return err
	}
	if s.watcher != nil {
		if err := s.watcher.Start(ctx); err != nil {
			_ = s.robot.Stop()
			return err
		}
	}
	return nil
}

// Run starts the simulator and blocks until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Close()
}

// Close stops the robot, the watcher and the provider.
func (s *Simulator) Close() error {
	var firstErr error
	if s.watcher != nil {
		if err := s.watcher.Stop(); err != nil {
			firstErr = err
		}
	}
	if err := s.robot.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.provider.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
