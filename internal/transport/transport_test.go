package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/robotdriver/internal/kinematics"
)

// loopback is a synchronous single-process endpoint for codec tests.
type loopback struct {
	handlers map[string][]Handler
	refuse   error
}

func newLoopback() *loopback {
	return &loopback{handlers: make(map[string][]Handler)}
}

type loopbackPublisher struct {
	l     *loopback
	topic string
}

func (p loopbackPublisher) Topic() string { return p.topic }

func (p loopbackPublisher) Publish(_ context.Context, payload []byte) error {
	for _, h := range p.l.handlers[p.topic] {
		h(payload)
	}
	return nil
}

type loopbackSubscription struct{ topic string }

func (s loopbackSubscription) Topic() string      { return s.topic }
func (s loopbackSubscription) Unsubscribe() error { return nil }

func (l *loopback) Advertise(topic string) (Publisher, error) {
	if l.refuse != nil {
		return nil, l.refuse
	}
	return loopbackPublisher{l: l, topic: topic}, nil
}

func (l *loopback) Subscribe(topic string, h Handler) (Subscription, error) {
	if l.refuse != nil {
		return nil, l.refuse
	}
	l.handlers[topic] = append(l.handlers[topic], h)
	return loopbackSubscription{topic: topic}, nil
}

func TestNewTopics(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "get/joint_states"},
		{"arm", "arm/get/joint_states"},
		{"arm/", "arm/get/joint_states"},
		{" /ns/arm// ", "/ns/arm/get/joint_states"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTopics(tt.prefix).JointStates)
		})
	}

	topics := NewTopics("arm")
	assert.Equal(t, []string{
		"arm/get/joint_states",
		"arm/get/joint_positions_min",
		"arm/get/joint_positions_max",
		"arm/get/reference_frame",
		"arm/set/target_joint_positions",
	}, topics.All())
}

func TestTypedRoundTrip(t *testing.T) {
	bus := newLoopback()

	var got []Float64ArrayMessage
	_, err := Subscribe(bus, "t", func(m Float64ArrayMessage) { got = append(got, m) }, nil)
	require.NoError(t, err)

	pub, err := NewPublisher[Float64ArrayMessage](bus, "t")
	require.NoError(t, err)
	assert.Equal(t, "t", pub.Topic())

	require.NoError(t, pub.Publish(context.Background(), Float64ArrayMessage{Data: []float64{1, 2.5}}))
	require.Len(t, got, 1)
	assert.Equal(t, []float64{1, 2.5}, got[0].Data)
}

func TestSubscribeRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"wrong type", `{"dq": "identity"}`},
		{"short pose", `{"dq": [1, 0, 0]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := newLoopback()
			var (
				handled   bool
				malformed error
			)
			_, err := Subscribe(bus, "pose", func(PoseMessage) { handled = true }, func(err error) { malformed = err })
			require.NoError(t, err)

			pub, err := bus.Advertise("pose")
			require.NoError(t, err)
			require.NoError(t, pub.Publish(context.Background(), []byte(tt.payload)))

			assert.False(t, handled)
			var mpe *MalformedPayloadError
			require.ErrorAs(t, malformed, &mpe)
			assert.Equal(t, "pose", mpe.Topic)
		})
	}
}

func TestJointStateValidate(t *testing.T) {
	err := Decode("js", []byte(`{"name": ["a"], "position": [1, 2]}`), &JointStateMessage{})
	assert.Error(t, err)

	var msg JointStateMessage
	require.NoError(t, Decode("js", []byte(`{"position": [1, 2]}`), &msg))
	assert.Equal(t, []float64{1, 2}, msg.Position)
}

func TestPoseMessageConversion(t *testing.T) {
	pose := kinematics.FromTranslationRotation([3]float64{1, 2, 3}, kinematics.RotationZ(0.5))
	msg := NewPoseMessage(pose, "world", time.Time{})

	assert.Len(t, msg.DQ, 8)
	assert.Equal(t, "world", msg.FrameID)
	assert.True(t, msg.Pose().EqualApprox(pose, 0))
}

func TestRegistrationErrorsAreWrapped(t *testing.T) {
	bus := newLoopback()
	bus.refuse = errors.New("refused")

	_, err := NewPublisher[Float64ArrayMessage](bus, "t")
	assert.ErrorContains(t, err, "failed to advertise t")

	_, err = Subscribe(bus, "t", func(Float64ArrayMessage) {}, nil)
	assert.ErrorContains(t, err, "failed to subscribe to t")
}
