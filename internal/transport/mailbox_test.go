package transport

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailboxDelivers(t *testing.T) {
	got := make(chan string, 1)
	m := NewMailbox(func(p []byte) { got <- string(p) })
	defer m.Close()

	m.Put([]byte("hello"))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(time.Second):
		t.Fatal("payload not delivered")
	}
}

func TestMailboxKeepsOnlyLatest(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	var (
		mu       sync.Mutex
		received []string
	)
	m := NewMailbox(func(p []byte) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		received = append(received, string(p))
		mu.Unlock()
	})
	defer m.Close()

	// Block the handler on the first payload, then queue three more.
	m.Put([]byte("first"))
	<-started
	assert.False(t, m.Put([]byte("second")))
	assert.True(t, m.Put([]byte("third")))
	assert.True(t, m.Put([]byte("fourth")))
	close(release)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "fourth"}, received)
}

func TestMailboxCloseWaitsForHandler(t *testing.T) {
	entered := make(chan struct{})
	var finished bool
	m := NewMailbox(func([]byte) {
		close(entered)
		time.Sleep(20 * time.Millisecond)
		finished = true
	})

	m.Put([]byte("x"))
	<-entered
	m.Close()
	assert.True(t, finished)

	// Idempotent and silent after close.
	m.Close()
	assert.False(t, m.Put([]byte("late")))
}
