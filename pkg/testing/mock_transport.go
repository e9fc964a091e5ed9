package testing

import (
	"sync"

	"github.com/gabrielmiguelok/crimedesk/pkg/core"
)

// MockTransport implements core.Transport and records everything sent.
type MockTransport struct {
	sent        []core.Message
	closed      bool
	errorToSend error

	mu sync.Mutex
}

// NewMockTransport creates a connected mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// Send records a sent message.
func (mt *MockTransport) Send(msg core.Message) error {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if mt.errorToSend != nil {
		return mt.errorToSend
	}
	if mt.closed {
		return core.ErrSocketClosed
	}

	mt.sent = append(mt.sent, msg)
	return nil
}

// Close marks the transport as closed.
func (mt *MockTransport) Close() error {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.closed = true
	return nil
}

// IsConnected reports whether Close has not been called.
func (mt *MockTransport) IsConnected() bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return !mt.closed
}

// Sent returns a copy of all sent messages.
func (mt *MockTransport) Sent() []core.Message {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	out := make([]core.Message, len(mt.sent))
	copy(out, mt.sent)
	return out
}

// SentEvents returns the sent messages with the given event.
func (mt *MockTransport) SentEvents(event string) []core.Message {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	var out []core.Message
	for _, msg := range mt.sent {
		if msg.Event == event {
			out = append(out, msg)
		}
	}
	return out
}

// LastSent returns the last sent message.
func (mt *MockTransport) LastSent() (core.Message, bool) {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	if len(mt.sent) == 0 {
		return core.Message{}, false
	}
	return mt.sent[len(mt.sent)-1], true
}

// SentCount returns the number of sent messages.
func (mt *MockTransport) SentCount() int {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return len(mt.sent)
}

// ClearSent forgets recorded messages.
func (mt *MockTransport) ClearSent() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.sent = nil
}

// SetError makes every Send fail with err until cleared with nil.
func (mt *MockTransport) SetError(err error) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.errorToSend = err
}
