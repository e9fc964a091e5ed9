package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gabrielmiguelok/crimedesk/pkg/js"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
)

var (
	ErrSocketClosed = errors.New("socket is closed")
	ErrSendFailed   = errors.New("failed to send message")
)

// Transport is what a Socket pushes through.
type Transport interface {
	Send(msg Message) error
	Close() error
	IsConnected() bool
}

// Message is a server push.
type Message struct {
	Ref     string         `json:"ref,omitempty" msgpack:"ref,omitempty"`
	Topic   string         `json:"topic" msgpack:"topic"`
	Event   string         `json:"event" msgpack:"event"`
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Socket is the server end of one live connection. Send, Push and Close are
// safe for concurrent use.
type Socket struct {
	id        string
	transport Transport

	mu     sync.RWMutex
	closed bool
}

// NewSocket wraps transport.
func NewSocket(id string, transport Transport) *Socket {
	return &Socket{id: id, transport: transport}
}

func (s *Socket) ID() string { return s.id }

// Topic is the channel the browser joined.
func (s *Socket) Topic() string { return "lv:" + s.id }

func (s *Socket) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed && s.transport != nil && s.transport.IsConnected()
}

// Send delivers msg. A closed socket or transport yields ErrSocketClosed,
// any other transport failure wraps ErrSendFailed.
func (s *Socket) Send(msg Message) error {
	if !s.IsConnected() {
		return ErrSocketClosed
	}

	if err := s.transport.Send(msg); err != nil {
		if !s.IsConnected() {
			return ErrSocketClosed
		}
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// Push sends event on the socket's topic.
func (s *Socket) Push(event string, payload map[string]any) error {
	return s.Send(Message{Topic: s.Topic(), Event: event, Payload: payload})
}

// Exec pushes client commands, which the browser runs in order. An empty
// batch sends nothing.
func (s *Socket) Exec(cmds js.Commands) error {
	if len(cmds) == 0 {
		return nil
	}
	return s.Push(protocol.EventJS, map[string]any{"ops": cmds.Ops()})
}

// DiffPayload carries changed text slots (s), HTML slots (h) or, when the
// markup has no slots, the full render (f).
type DiffPayload struct {
	Version   uint64            `json:"v"`
	Slots     map[string]string `json:"s,omitempty"`
	HTMLSlots map[string]string `json:"h,omitempty"`
	Full      string            `json:"f,omitempty"`
}

func (d *DiffPayload) IsEmpty() bool {
	return len(d.Slots) == 0 && len(d.HTMLSlots) == 0 && d.Full == ""
}

// SendDiff pushes payload unless it is empty.
func (s *Socket) SendDiff(payload *DiffPayload) error {
	if payload == nil || payload.IsEmpty() {
		return nil
	}
	return s.Push(protocol.EventDiff, map[string]any{
		"v": payload.Version,
		"s": payload.Slots,
		"h": payload.HTMLSlots,
		"f": payload.Full,
	})
}

// Close marks the socket closed and closes the transport.
func (s *Socket) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.transport != nil {
		return s.transport.Close()
	}
	return nil
}

// SocketManager tracks the open sockets of a router.
type SocketManager struct {
	mu       sync.RWMutex
	sockets  map[string]*Socket
	shutdown bool
}

func NewSocketManager() *SocketManager {
	return &SocketManager{sockets: make(map[string]*Socket)}
}

func (sm *SocketManager) Add(socket *Socket) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sockets[socket.ID()] = socket
}

func (sm *SocketManager) Remove(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sockets, id)
}

func (sm *SocketManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sockets)
}

// Shutdown closes every socket until ctx ends. Later calls do nothing.
func (sm *SocketManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	if sm.shutdown {
		sm.mu.Unlock()
		return nil
	}
	sm.shutdown = true
	sockets := make([]*Socket, 0, len(sm.sockets))
	for _, s := range sm.sockets {
		sockets = append(sockets, s)
	}
	sm.sockets = make(map[string]*Socket)
	sm.mu.Unlock()

	for _, s := range sockets {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Close()
	}
	return nil
}
