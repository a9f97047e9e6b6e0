package transport

import "sync"

// Mailbox delivers payloads to a handler on its own goroutine, keeping only
// the most recent undelivered payload.
type Mailbox struct {
	handler Handler

	mu      sync.Mutex
	pending []byte
	full    bool
	closed  bool

	signal chan struct{}
	done   chan struct{}
	exited chan struct{}
}

// NewMailbox starts the delivery goroutine for handler.
func NewMailbox(handler Handler) *Mailbox {
	m := &Mailbox{
		handler: handler,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go m.run()
	return m
}

// Put stores payload for delivery and reports whether an undelivered payload
// was replaced. Payloads put after Close are dropped.
func (m *Mailbox) Put(payload []byte) (superseded bool) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	superseded = m.full
	m.pending = payload
	m.full = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return superseded
}

// Close stops delivery and waits for an in-flight handler call to return.
// Close must not be called from the handler.
func (m *Mailbox) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		<-m.exited
		return
	}
	m.closed = true
	m.pending = nil
	m.full = false
	m.mu.Unlock()

	close(m.done)
	<-m.exited
}

func (m *Mailbox) run() {
	defer close(m.exited)

	for {
		select {
		case <-m.done:
			return
		case <-m.signal:
		}

		m.mu.Lock()
		payload, ok := m.pending, m.full
		m.pending, m.full = nil, false
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return
		}
		if ok {
			m.handler(payload)
		}
	}
}
