// Package testing drives live components without a browser or websocket.
package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/crimedesk/pkg/core"
	"github.com/gabrielmiguelok/crimedesk/pkg/js"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
)

// LiveViewTest is a harness around one mounted component.
type LiveViewTest struct {
	t         testing.TB
	component core.Component
	transport *MockTransport
	socket    *core.Socket
	params    core.Params
	session   core.Session
	rendered  string
	events    []string
}

// MountOption configures the test mount.
type MountOption func(*LiveViewTest)

// WithParams sets mount parameters.
func WithParams(params core.Params) MountOption {
	return func(lvt *LiveViewTest) {
		lvt.params = params
	}
}

// WithSession sets session data.
func WithSession(session core.Session) MountOption {
	return func(lvt *LiveViewTest) {
		lvt.session = session
	}
}

// Mount connects comp to a mock transport, mounts it and renders it once.
func Mount(t testing.TB, comp core.Component, opts ...MountOption) *LiveViewTest {
	t.Helper()

	lvt := &LiveViewTest{
		t:         t,
		component: comp,
		transport: NewMockTransport(),
		params:    core.Params{},
		session:   core.Session{},
	}
	for _, opt := range opts {
		opt(lvt)
	}

	lvt.socket = core.NewSocket(uuid.NewString(), lvt.transport)
	if setter, ok := comp.(interface{ SetSocket(*core.Socket) }); ok {
		setter.SetSocket(lvt.socket)
	}

	if err := comp.Mount(lvt.ctx(), lvt.params, lvt.session); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	lvt.render()
	return lvt
}

func (lvt *LiveViewTest) ctx() context.Context {
	return logging.ContextWithLogger(context.Background(), logging.NopLogger{})
}

// Push delivers an event and re-renders when it succeeds.
func (lvt *LiveViewTest) Push(event string, payload map[string]any) error {
	lvt.t.Helper()

	lvt.events = append(lvt.events, event)
	if payload == nil {
		payload = map[string]any{}
	}
	if err := lvt.component.HandleEvent(lvt.ctx(), event, payload); err != nil {
		return err
	}
	lvt.render()
	return nil
}

// MustPush is Push that fails the test on error.
func (lvt *LiveViewTest) MustPush(event string, payload map[string]any) *LiveViewTest {
	lvt.t.Helper()
	if err := lvt.Push(event, payload); err != nil {
		lvt.t.Fatalf("HandleEvent(%q) failed: %v", event, err)
	}
	return lvt
}

func (lvt *LiveViewTest) render() {
	lvt.t.Helper()

	ctx := lvt.ctx()
	var buf bytes.Buffer
	if err := lvt.component.Render(ctx).Render(ctx, &buf); err != nil {
		lvt.t.Fatalf("Render failed: %v", err)
	}
	lvt.rendered = buf.String()
}

// Rendered returns the latest HTML.
func (lvt *LiveViewTest) Rendered() string {
	return lvt.rendered
}

// HTML returns assertions over the latest HTML.
func (lvt *LiveViewTest) HTML() *HTMLAssert {
	return NewHTMLAssert(lvt.t, lvt.rendered)
}

// Ops returns every client command pushed since mount or the last ClearOps.
func (lvt *LiveViewTest) Ops() js.Commands {
	var out js.Commands
	for _, msg := range lvt.transport.SentEvents("js") {
		ops, _ := msg.Payload["ops"].([]map[string]any)
		for _, op := range ops {
			name, _ := op["op"].(string)
			args, _ := op["args"].(map[string]any)
			out = append(out, js.Command{Op: name, Args: args})
		}
	}
	return out
}

// ClearOps forgets recorded messages.
func (lvt *LiveViewTest) ClearOps() {
	lvt.transport.ClearSent()
}

// Close terminates the component as a client disconnect would.
func (lvt *LiveViewTest) Close() error {
	err := lvt.component.Terminate(lvt.ctx(), core.TerminateNormal)
	lvt.socket.Close()
	return err
}

// Transport returns the mock transport.
func (lvt *LiveViewTest) Transport() *MockTransport {
	return lvt.transport
}

// Socket returns the socket the component was given.
func (lvt *LiveViewTest) Socket() *core.Socket {
	return lvt.socket
}

// Component returns the component under test.
func (lvt *LiveViewTest) Component() core.Component {
	return lvt.component
}

// Events returns the names of all pushed events.
func (lvt *LiveViewTest) Events() []string {
	return lvt.events
}
