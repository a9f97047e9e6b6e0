package driver

import (
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
	"github.com/GriffinCanCode/robotdriver/internal/shared/id"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

const roleProvider = "provider"

// Provider is the robot side of the driver.
type Provider struct {
	topics transport.Topics
	opts   options

	positions *transport.TypedPublisher[transport.JointStateMessage]
	limitsMin *transport.TypedPublisher[transport.Float64ArrayMessage]
	limitsMax *transport.TypedPublisher[transport.Float64ArrayMessage]
	frame     *transport.TypedPublisher[transport.PoseMessage]
	sub       transport.Subscription

	mu         sync.RWMutex
	target     kinematics.JointVector
	ready      bool
	jointNames []string
	frameID    string

	closeOnce sync.Once
}

// NewProviderOn creates a Provider that publishes and subscribes through bus.
func NewProviderOn(bus transport.Bus, prefix string, opts ...Option) (*Provider, error) {
	return NewProvider(bus, bus, prefix, opts...)
}

// NewProvider advertises the provider channels on pub and subscribes to the
// target channel on sub.
func NewProvider(pub transport.Advertiser, sub transport.Subscriber, prefix string, opts ...Option) (*Provider, error) {
	o := applyOptions(opts)
	topics := transport.NewTopics(prefix)
	o.logger = o.logger.Named(roleProvider).With(
		zap.String("node", id.NewNodeID().String()),
		zap.String("prefix", topics.Prefix),
	)

	p := &Provider{topics: topics, opts: o, jointNames: o.jointNames, frameID: o.frameID}

	var err error
	if p.positions, err = transport.NewPublisher[transport.JointStateMessage](pub, topics.JointStates); err != nil {
		return nil, err
	}
	if p.limitsMin, err = transport.NewPublisher[transport.Float64ArrayMessage](pub, topics.JointPositionsMin); err != nil {
		return nil, err
	}
	if p.limitsMax, err = transport.NewPublisher[transport.Float64ArrayMessage](pub, topics.JointPositionsMax); err != nil {
		return nil, err
	}
	if p.frame, err = transport.NewPublisher[transport.PoseMessage](pub, topics.ReferenceFrame); err != nil {
		return nil, err
	}

	p.sub, err = transport.Subscribe(sub, topics.TargetJointPositions, p.onTarget, o.malformed)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Provider initialized")
	return p, nil
}

func (p *Provider) onTarget(msg transport.Float64ArrayMessage) {
	p.opts.metrics.RecordReceived(p.topics.TargetJointPositions)
	v := kinematics.FromFloat64s(msg.Data)

	p.mu.Lock()
	p.target = v
	p.ready = true
	p.mu.Unlock()
}

// Topics returns the channel names in use.
func (p *Provider) Topics() transport.Topics {
	return p.topics
}

// PublishPositions publishes the current joint positions.
func (p *Provider) PublishPositions(v kinematics.JointVector) {
	msg := transport.JointStateMessage{
		Stamp:    p.opts.now(),
		Position: v.Float64s(),
	}

	p.mu.RLock()
	if len(p.jointNames) == len(msg.Position) {
		msg.Name = p.jointNames
	}
	p.mu.RUnlock()

	publish(&p.opts, p.positions, msg)
}

// PublishLimits publishes min and then max. A consumer may observe the new
// min together with the old max.
func (p *Provider) PublishLimits(min, max kinematics.JointVector) {
	publish(&p.opts, p.limitsMin, transport.Float64ArrayMessage{Data: min.Float64s()})
	publish(&p.opts, p.limitsMax, transport.Float64ArrayMessage{Data: max.Float64s()})
}

// PublishReferenceFrame publishes the robot base pose.
func (p *Provider) PublishReferenceFrame(pose kinematics.Pose) {
	p.mu.RLock()
	frameID := p.frameID
	p.mu.RUnlock()

	publish(&p.opts, p.frame, transport.NewPoseMessage(pose, frameID, p.opts.now()))
}

// SetJointNames replaces the names attached to later joint states.
func (p *Provider) SetJointNames(names ...string) {
	names = append([]string(nil), names...)

	p.mu.Lock()
	p.jointNames = names
	p.mu.Unlock()
}

// SetFrameID replaces the frame id of later reference frames.
func (p *Provider) SetFrameID(frameID string) {
	p.mu.Lock()
	p.frameID = frameID
	p.mu.Unlock()
}

// TargetPositions returns the latest received joint target.
func (p *Provider) TargetPositions() (kinematics.JointVector, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.ready {
		return nil, &NotReadyError{Role: roleProvider, Op: "TargetPositions", Missing: []string{"target joint positions"}}
	}
	return p.target.Clone(), nil
}

// IsReady reports whether a target has ever been received. It never reverts
// to false.
func (p *Provider) IsReady() bool {
	p.mu.RLock()
	ready := p.ready
	p.mu.RUnlock()

	p.opts.metrics.SetReady(roleProvider, p.topics.Prefix, ready)
	return ready
}

// Close detaches the target subscription.
func (p *Provider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = unsubscribeAll(p.opts.logger, []transport.Subscription{p.sub})
	})
	return err
}
