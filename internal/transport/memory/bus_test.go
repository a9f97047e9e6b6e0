package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/robotdriver/internal/transport"
)

func TestSynchronousFanOut(t *testing.T) {
	bus := New(WithSynchronousDelivery())
	defer bus.Close()

	var a, b []string
	_, err := bus.Subscribe("t", func(p []byte) { a = append(a, string(p)) })
	require.NoError(t, err)
	_, err = bus.Subscribe("t", func(p []byte) { b = append(b, string(p)) })
	require.NoError(t, err)
	_, err = bus.Subscribe("other", func([]byte) { t.Error("wrong topic delivered") })
	require.NoError(t, err)

	pub, err := bus.Advertise("t")
	require.NoError(t, err)
	require.NoError(t, pub.Publish(context.Background(), []byte("one")))
	require.NoError(t, pub.Publish(context.Background(), []byte("two")))

	assert.Equal(t, []string{"one", "two"}, a)
	assert.Equal(t, []string{"one", "two"}, b)
	assert.Equal(t, 2, bus.SubscriberCount("t"))
}

func TestPublishCopiesPayload(t *testing.T) {
	bus := New(WithSynchronousDelivery())
	defer bus.Close()

	var got []byte
	_, err := bus.Subscribe("t", func(p []byte) { got = p })
	require.NoError(t, err)

	buf := []byte("abc")
	require.NoError(t, bus.Publish(context.Background(), "t", buf))
	buf[0] = 'z'

	assert.Equal(t, "abc", string(got))
}

func TestAsynchronousDelivery(t *testing.T) {
	bus := New()
	defer bus.Close()

	var (
		mu   sync.Mutex
		last string
	)
	_, err := bus.Subscribe("t", func(p []byte) {
		mu.Lock()
		last = string(p)
		mu.Unlock()
	})
	require.NoError(t, err)

	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, bus.Publish(context.Background(), "t", []byte(v)))
	}

	// Intermediate values may be superseded, the last one never is.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last == "3"
	}, time.Second, 5*time.Millisecond)
}

func TestUnsubscribe(t *testing.T) {
	bus := New(WithSynchronousDelivery())
	defer bus.Close()

	calls := 0
	sub, err := bus.Subscribe("t", func([]byte) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, "t", sub.Topic())

	require.NoError(t, bus.Publish(context.Background(), "t", nil))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish(context.Background(), "t", nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.SubscriberCount("t"))
}

func TestClosedBus(t *testing.T) {
	bus := New()
	_, err := bus.Subscribe("t", func([]byte) {})
	require.NoError(t, err)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, err = bus.Advertise("t")
	assert.ErrorIs(t, err, transport.ErrClosed)
	_, err = bus.Subscribe("t", func([]byte) {})
	assert.ErrorIs(t, err, transport.ErrClosed)
	assert.ErrorIs(t, bus.Publish(context.Background(), "t", nil), transport.ErrClosed)
}

func TestInvalidRegistrations(t *testing.T) {
	bus := New()
	defer bus.Close()

	_, err := bus.Advertise("")
	assert.Error(t, err)
	_, err = bus.Subscribe("", func([]byte) {})
	assert.Error(t, err)
	_, err = bus.Subscribe("t", nil)
	assert.Error(t, err)
}

func TestPublishHonorsContext(t *testing.T) {
	bus := New(WithSynchronousDelivery())
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, "t", nil), context.Canceled)
}
