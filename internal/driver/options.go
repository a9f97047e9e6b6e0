package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

// Option configures a Consumer or Provider.
type Option func(*options)

type options struct {
	logger         *logging.Logger
	metrics        *monitoring.Metrics
	publishTimeout time.Duration
	jointNames     []string
	frameID        string
	now            func() time.Time
}

func defaultOptions() options {
	return options{
		logger:         logging.Nop(),
		publishTimeout: 2 * time.Second,
		frameID:        "world",
		now:            time.Now,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	return o
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics records message counts and readiness.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

// WithPublishTimeout bounds each publish call.
func WithPublishTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.publishTimeout = d
		}
	}
}

// WithJointNames attaches joint names to published joint states. Names are
// only sent when their count matches the position count.
func WithJointNames(names ...string) Option {
	return func(o *options) { o.jointNames = append([]string(nil), names...) }
}

// WithFrameID sets the frame id of published reference frames.
func WithFrameID(frameID string) Option {
	return func(o *options) { o.frameID = frameID }
}

// publish sends msg, logging and counting failures instead of returning them.
func publish[T any](o *options, pub *transport.TypedPublisher[T], msg T) {
	ctx, cancel := context.WithTimeout(context.Background(), o.publishTimeout)
	defer cancel()

	if err := pub.Publish(ctx, msg); err != nil {
		o.logger.Warn("Failed to publish", zap.String("topic", pub.Topic()), zap.Error(err))
		o.metrics.RecordPublishFailure(pub.Topic())
		return
	}
	o.metrics.RecordPublished(pub.Topic())
}

func (o *options) malformed(err error) {
	topic := ""
	var mp *transport.MalformedPayloadError
	if errors.As(err, &mp) {
		topic = mp.Topic
	}
	o.logger.Warn("Dropped malformed payload", zap.String("topic", topic), zap.Error(err))
	o.metrics.RecordMalformed(topic)
}

// unsubscribeAll detaches every subscription and joins the failures.
func unsubscribeAll(logger *logging.Logger, subs []transport.Subscription) error {
	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.Warn("Failed to unsubscribe", zap.String("topic", sub.Topic()), zap.Error(err))
			errs = append(errs, fmt.Errorf("failed to unsubscribe from %s: %w", sub.Topic(), err))
		}
	}
	return errors.Join(errs...)
}
