package apc

import (
	"sync"

	"github.com/tilezen/go-tilepipe/pipeline"
)

// mailbox is an unbounded FIFO of messages, so that a slow consumer never
// blocks a procedure.
type mailbox struct {
	mu       sync.Mutex
	messages []pipeline.Message
	closed   bool
	notify   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{notify: make(chan struct{}, 1)}
}

func (m *mailbox) Send(msg pipeline.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMailboxClosed
	}
	m.messages = append(m.messages, msg)

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

func (m *mailbox) Receive() (pipeline.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return nil, false
	}
	msg := m.messages[0]
	m.messages[0] = nil
	m.messages = m.messages[1:]
	return msg, true
}

func (m *mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}
