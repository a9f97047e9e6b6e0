// Package sim is a simulated robot that serves a driver.Provider.
//
// Each control step moves the joints toward the latest target at a bounded
// velocity, within the profile limits. Joint states are published every step;
// limits and the reference frame are republished on a slower schedule so that
// consumers that connect late still become ready.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
	"github.com/GriffinCanCode/robotdriver/internal/robot/profile"
)

// Provider is the driver side the simulator publishes through.
type Provider interface {
	PublishPositions(v kinematics.JointVector)
	PublishLimits(min, max kinematics.JointVector)
	PublishReferenceFrame(p kinematics.Pose)
	TargetPositions() (kinematics.JointVector, error)
	SetJointNames(names ...string)
	SetFrameID(frameID string)
}

// Config sets the simulation rates.
type Config struct {
	RateHz         float64
	LimitsInterval time.Duration
	// MaxVelocity is the per-joint speed limit in units per second. A profile
	// max_velocity takes precedence.
	MaxVelocity float64
}

// DefaultConfig returns a 100 Hz simulation.
func DefaultConfig() Config {
	return Config{RateHz: 100, LimitsInterval: time.Second, MaxVelocity: 1}
}

// Robot holds the simulated ground truth.
type Robot struct {
	provider Provider
	cfg      Config
	logger   *logging.Logger

	mu        sync.Mutex
	profile   *profile.Profile
	positions kinematics.JointVector
	limits    kinematics.JointLimits
	frame     kinematics.Pose
	mismatch  bool

	scheduler gocron.Scheduler
	stop      chan struct{}
	exited    chan struct{}
}

// New creates a robot at the profile's initial positions.
func New(provider Provider, p *profile.Profile, cfg Config, logger *logging.Logger) (*Robot, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.RateHz <= 0 {
		return nil, fmt.Errorf("rate must be positive, got %g", cfg.RateHz)
	}
	if cfg.LimitsInterval <= 0 {
		cfg.LimitsInterval = time.Second
	}
	if logger == nil {
		logger = logging.Nop()
	}

	r := &Robot{
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("sim"),
	}
	if err := r.load(p); err != nil {
		return nil, err
	}
	r.positions = p.InitialPositions()
	return r, nil
}

func (r *Robot) load(p *profile.Profile) error {
	if p == nil {
		return errors.New("profile is required")
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	frame, err := p.Pose()
	if err != nil {
		return err
	}
	r.profile = p
	r.limits = p.JointLimits()
	r.frame = frame
	return nil
}

// Positions returns the simulated joint positions.
func (r *Robot) Positions() kinematics.JointVector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positions.Clone()
}

// Profile returns the active profile.
func (r *Robot) Profile() *profile.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile
}

// Step advances the simulation by dt. Without a target, or with a target of
// the wrong length, the robot holds still.
func (r *Robot) Step(dt time.Duration) {
	target, err := r.provider.TargetPositions()
	if err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	clamped, err := r.limits.Clamp(target)
	if err != nil {
		if !r.mismatch {
			r.logger.Warn("Ignoring target", zap.Error(err))
			r.mismatch = true
		}
		return
	}
	r.mismatch = false

	next, err := kinematics.StepToward(r.positions, clamped, r.maxVelocityLocked()*dt.Seconds())
	if err != nil {
		r.logger.Warn("Failed to step", zap.Error(err))
		return
	}
	r.positions = next
}

func (r *Robot) maxVelocityLocked() float64 {
	if r.profile.MaxVelocity > 0 {
		return r.profile.MaxVelocity
	}
	return r.cfg.MaxVelocity
}

// PublishState publishes the current joint positions.
func (r *Robot) PublishState() {
	r.provider.PublishPositions(r.Positions())
}

// PublishStatic publishes the joint limits and the reference frame.
func (r *Robot) PublishStatic() {
	r.mu.Lock()
	limits := r.limits.Clone()
	frame := r.frame
	r.mu.Unlock()

	r.provider.PublishLimits(limits.Min, limits.Max)
	r.provider.PublishReferenceFrame(frame)
}

// ApplyProfile switches to a new profile and republishes limits and frame.
// Positions are clamped into the new limits, or reset to the initial
// positions when the joint count changes.
func (r *Robot) ApplyProfile(p *profile.Profile) error {
	r.mu.Lock()
	prevJoints := len(r.positions)
	if err := r.load(p); err != nil {
		r.mu.Unlock()
		return err
	}
	if len(p.Joints) != prevJoints {
		r.positions = p.InitialPositions()
	} else if clamped, err := r.limits.Clamp(r.positions); err == nil {
		r.positions = clamped
	}
	r.mismatch = false
	r.mu.Unlock()

	r.provider.SetJointNames(p.JointNames()...)
	r.provider.SetFrameID(p.FrameID())

	r.logger.Info("Applied robot profile", zap.String("name", p.Name), zap.Int("joints", len(p.Joints)))
	r.PublishStatic()
	r.PublishState()
	return nil
}

// Start publishes everything once and schedules the control and republish
// jobs.
func (r *Robot) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	period := time.Duration(float64(time.Second) / r.cfg.RateHz)
	if _, err := s.NewJob(
		gocron.DurationJob(period),
		gocron.NewTask(func() {
			r.Step(period)
			r.PublishState()
		}),
		gocron.WithName("sim-control"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule control job: %w", err)
	}
	if _, err := s.NewJob(
		gocron.DurationJob(r.cfg.LimitsInterval),
		gocron.NewTask(r.PublishStatic),
		gocron.WithName("sim-static"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule static job: %w", err)
	}

	r.PublishStatic()
	r.PublishState()

	stop, exited := make(chan struct{}), make(chan struct{})
	r.mu.Lock()
	r.scheduler = s
	r.stop, r.exited = stop, exited
	r.mu.Unlock()

	r.logger.Info("Starting simulated robot",
		zap.String("profile", r.Profile().Name),
		zap.Float64("rate_hz", r.cfg.RateHz),
		zap.Duration("limits_interval", r.cfg.LimitsInterval))
	s.Start()

	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = r.Stop()
		case <-stop:
		}
	}()
	return nil
}

// Stop shuts the scheduler down. It is safe to call more than once.
func (r *Robot) Stop() error {
	r.mu.Lock()
	s, stop := r.scheduler, r.stop
	r.scheduler, r.stop = nil, nil
	r.mu.Unlock()

	if s == nil {
		return nil
	}
	close(stop)
	r.logger.Info("Stopping simulated robot")
	return s.Shutdown()
}
