package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratorMonotonic(t *testing.T) {
	gen := NewGenerator(rand.Reader)

	prev := gen.Generate()
	for i := 0; i < 100; i++ {
		next := gen.Generate()
		assert.Equal(t, 1, next.Compare(prev), "IDs must increase")
		prev = next
	}
}

func TestPrefixedIDs(t *testing.T) {
	tests := []struct {
		prefix string
		value  string
	}{
		{SubscriptionPrefix, NewSubscriptionID().String()},
		{StreamPrefix, NewStreamID().String()},
		{NodePrefix, NewNodeID().String()},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			assert.True(t, strings.HasPrefix(tt.value, tt.prefix+"_"))
			assert.Len(t, strings.TrimPrefix(tt.value, tt.prefix+"_"), 26)
		})
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewSubscriptionID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("sub_not-a-ulid")
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	const workers, perWorker = 8, 50

	var (
		mu   sync.Mutex
		seen = make(map[SubscriptionID]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				sid := NewSubscriptionID()
				mu.Lock()
				seen[sid] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}
