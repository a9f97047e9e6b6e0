// Package id provides ULID-based identifiers for transport bookkeeping.
//
// IDs are prefixed by kind so that logs stay readable:
//   - sub_*: a handler registered on a bus topic
//   - stream_*: a remote subscription served over the gRPC bus
//   - node_*: a driver component instance
//   - trace_* / span_*: request tracing
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SubscriptionID identifies a handler registered on a topic
type SubscriptionID string

// StreamID identifies a remote subscription stream
type StreamID string

// NodeID identifies a provider or consumer instance
type NodeID string

// TraceID identifies one traced request flow
type TraceID string

// SpanID identifies one operation inside a trace
type SpanID string

const (
	SubscriptionPrefix = "sub"
	StreamPrefix       = "stream"
	NodePrefix         = "node"
	TracePrefix        = "trace"
	SpanPrefix         = "span"
)

// Generator generates ULIDs with monotonic entropy per millisecond
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator(rand.Reader)
	})
	return defaultGenerator
}

// NewGenerator creates a generator reading entropy from r
func NewGenerator(r io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(r, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// WithPrefix creates a "prefix_ULID" string
func (g *Generator) WithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

func NewSubscriptionID() SubscriptionID {
	return SubscriptionID(Default().WithPrefix(SubscriptionPrefix))
}

func NewStreamID() StreamID {
	return StreamID(Default().WithPrefix(StreamPrefix))
}

func NewNodeID() NodeID {
	return NodeID(Default().WithPrefix(NodePrefix))
}

func NewTraceID() TraceID {
	return TraceID(Default().WithPrefix(TracePrefix))
}

func NewSpanID() SpanID {
	return SpanID(Default().WithPrefix(SpanPrefix))
}

func (id SubscriptionID) String() string { return string(id) }
func (id StreamID) String() string       { return string(id) }
func (id NodeID) String() string         { return string(id) }
func (id TraceID) String() string        { return string(id) }
func (id SpanID) String() string         { return string(id) }

// Timestamp extracts the creation time from a prefixed or bare ID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
