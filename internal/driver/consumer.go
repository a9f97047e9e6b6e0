package driver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
	"github.com/GriffinCanCode/robotdriver/internal/shared/id"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

const roleConsumer = "consumer"

// DriverState is a copy of everything a Consumer has cached.
type DriverState struct {
	Positions      kinematics.JointVector
	Limits         kinematics.JointLimits
	ReferenceFrame kinematics.Pose
}

// Consumer is the controller side of the driver.
type Consumer struct {
	topics transport.Topics
	opts   options

	target *transport.TypedPublisher[transport.Float64ArrayMessage]
	subs   []transport.Subscription

	mu        sync.RWMutex
	positions kinematics.JointVector
	limits    kinematics.JointLimits
	frame     kinematics.Pose

	closeOnce sync.Once
}

// NewConsumerOn creates a Consumer that publishes and subscribes through bus.
func NewConsumerOn(bus transport.Bus, prefix string, opts ...Option) (*Consumer, error) {
	return NewConsumer(bus, bus, prefix, opts...)
}

// NewConsumer advertises the target channel on pub and subscribes to the four
// provider channels on sub. It does not wait for any data.
func NewConsumer(pub transport.Advertiser, sub transport.Subscriber, prefix string, opts ...Option) (*Consumer, error) {
	o := applyOptions(opts)
	topics := transport.NewTopics(prefix)
	o.logger = o.logger.Named(roleConsumer).With(
		zap.String("node", id.NewNodeID().String()),
		zap.String("prefix", topics.Prefix),
	)

	c := &Consumer{topics: topics, opts: o}

	target, err := transport.NewPublisher[transport.Float64ArrayMessage](pub, topics.TargetJointPositions)
	if err != nil {
		return nil, err
	}
	c.target = target

	if err := c.subscribe(sub); err != nil {
		_ = unsubscribeAll(o.logger, c.subs)
		return nil, err
	}

	o.logger.Info("Consumer initialized")
	return c, nil
}

func (c *Consumer) subscribe(sub transport.Subscriber) error {
	s, err := transport.Subscribe(sub, c.topics.JointStates, c.onJointStates, c.opts.malformed)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, s)

	s, err = transport.Subscribe(sub, c.topics.JointPositionsMin, c.onLimitsMin, c.opts.malformed)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, s)

	s, err = transport.Subscribe(sub, c.topics.JointPositionsMax, c.onLimitsMax, c.opts.malformed)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, s)

	s, err = transport.Subscribe(sub, c.topics.ReferenceFrame, c.onReferenceFrame, c.opts.malformed)
	if err != nil {
		return err
	}
	c.subs = append(c.subs, s)
	return nil
}

func (c *Consumer) onJointStates(msg transport.JointStateMessage) {
	c.opts.metrics.RecordReceived(c.topics.JointStates)
	v := kinematics.FromFloat64s(msg.Position)

	c.mu.Lock()
	c.positions = v
	c.mu.Unlock()
}

func (c *Consumer) onLimitsMin(msg transport.Float64ArrayMessage) {
	c.opts.metrics.RecordReceived(c.topics.JointPositionsMin)
	v := kinematics.FromFloat64s(msg.Data)

	c.mu.Lock()
	c.limits.Min = v
	c.mu.Unlock()
}

func (c *Consumer) onLimitsMax(msg transport.Float64ArrayMessage) {
	c.opts.metrics.RecordReceived(c.topics.JointPositionsMax)
	v := kinematics.FromFloat64s(msg.Data)

	c.mu.Lock()
	c.limits.Max = v
	c.mu.Unlock()
}

func (c *Consumer) onReferenceFrame(msg transport.PoseMessage) {
	c.opts.metrics.RecordReceived(c.topics.ReferenceFrame)
	p := msg.Pose()

	c.mu.Lock()
	c.frame = p
	c.mu.Unlock()
}

// Topics returns the channel names in use.
func (c *Consumer) Topics() transport.Topics {
	return c.topics
}

// SendTargetPositions publishes a joint target. Nothing is validated and
// transport failures are only logged.
func (c *Consumer) SendTargetPositions(v kinematics.JointVector) {
	publish(&c.opts, c.target, transport.Float64ArrayMessage{Data: v.Float64s()})
}

// IsReady reports whether positions, both limits and a unit reference frame
// have all been received.
func (c *Consumer) IsReady() bool {
	c.mu.RLock()
	ready := c.readyLocked()
	c.mu.RUnlock()

	c.opts.metrics.SetReady(roleConsumer, c.topics.Prefix, ready)
	return ready
}

// Positions returns the latest joint positions.
func (c *Consumer) Positions() (kinematics.JointVector, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.readyLocked() {
		return nil, c.notReadyLocked("Positions")
	}
	return c.positions.Clone(), nil
}

// Limits returns the latest lower and upper joint limits.
func (c *Consumer) Limits() (min, max kinematics.JointVector, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.readyLocked() {
		return nil, nil, c.notReadyLocked("Limits")
	}
	return c.limits.Min.Clone(), c.limits.Max.Clone(), nil
}

// ReferenceFrame returns the latest reference frame.
func (c *Consumer) ReferenceFrame() (kinematics.Pose, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.readyLocked() {
		return kinematics.Pose{}, c.notReadyLocked("ReferenceFrame")
	}
	return c.frame, nil
}

// Snapshot copies every cached field under a single lock.
func (c *Consumer) Snapshot() (DriverState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.readyLocked() {
		return DriverState{}, c.notReadyLocked("Snapshot")
	}
	return DriverState{
		Positions:      c.positions.Clone(),
		Limits:         c.limits.Clone(),
		ReferenceFrame: c.frame,
	}, nil
}

// WaitReady polls IsReady every interval until it is true or ctx ends.
func (c *Consumer) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	if c.IsReady() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.mu.RLock()
			err := c.notReadyLocked("WaitReady")
			c.mu.RUnlock()
			return fmt.Errorf("%w: %w", err, ctx.Err())
		case <-ticker.C:
			if c.IsReady() {
				return nil
			}
		}
	}
}

// Close detaches every subscription and reports the ones that failed.
// Cached state stays readable.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = unsubscribeAll(c.opts.logger, c.subs)
		c.opts.metrics.SetReady(roleConsumer, c.topics.Prefix, false)
	})
	return err
}

func (c *Consumer) readyLocked() bool {
	return !c.positions.IsEmpty() &&
		!c.limits.Min.IsEmpty() &&
		!c.limits.Max.IsEmpty() &&
		c.frame.IsUnit()
}

func (c *Consumer) notReadyLocked(op string) *NotReadyError {
	var missing []string
	if c.positions.IsEmpty() {
		missing = append(missing, "joint positions")
	}
	if c.limits.Min.IsEmpty() {
		missing = append(missing, "joint positions min")
	}
	if c.limits.Max.IsEmpty() {
		missing = append(missing, "joint positions max")
	}
	if !c.frame.IsUnit() {
		missing = append(missing, "reference frame")
	}
	return &NotReadyError{Role: roleConsumer, Op: op, Missing: missing}
}
