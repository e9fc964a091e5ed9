// Package core defines live components and the sockets they push through.
//
// A component is mounted once per live connection. The router calls
// Mount with the query params and the authenticated session, Render for
// the initial document and every refresh, HandleEvent for each browser
// event and Terminate when the socket goes away.
package core

import (
	"context"
	"io"
)

// Component is a stateful server-side view bound to one live connection.
type Component interface {
	Name() string
	Mount(ctx context.Context, params Params, session Session) error
	Render(ctx context.Context) Renderer
	HandleEvent(ctx context.Context, event string, payload map[string]any) error
	Terminate(ctx context.Context, reason TerminateReason) error
}

// Renderer writes HTML.
type Renderer interface {
	Render(ctx context.Context, w io.Writer) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, w io.Writer) error

func (f RendererFunc) Render(ctx context.Context, w io.Writer) error { return f(ctx, w) }

// Params holds the first value of each query parameter of the connection.
type Params map[string]string

func (p Params) Get(key string) string { return p[key] }

// Session keys set by the router from the authenticated request.
const (
	SessionUserID    = "user_id"
	SessionUsername  = "username"
	SessionAdmin     = "admin"
	SessionID        = "session_id"
	SessionCSRFToken = "csrf_token"
)

// Session is the request state a component is mounted with.
type Session map[string]any

func (s Session) Get(key string) any { return s[key] }

// UserID is zero for anonymous connections.
func (s Session) UserID() int64 {
	id, _ := s[SessionUserID].(int64)
	return id
}

func (s Session) Username() string  { return s.str(SessionUsername) }
func (s Session) CSRFToken() string { return s.str(SessionCSRFToken) }

func (s Session) Admin() bool {
	v, _ := s[SessionAdmin].(bool)
	return v
}

func (s Session) str(key string) string {
	v, _ := s[key].(string)
	return v
}

// TerminateReason says why a component is torn down.
type TerminateReason int

const (
	// TerminateNormal is a client disconnect.
	TerminateNormal TerminateReason = iota
	// TerminateShutdown is a server shutdown.
	TerminateShutdown
	// TerminateIdle is a session reaped after sitting idle.
	TerminateIdle
)

func (r TerminateReason) String() string {
	switch r {
	case TerminateNormal:
		return "normal"
	case TerminateShutdown:
		return "shutdown"
	case TerminateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// BaseComponent gives a component no-op lifecycle methods and holds its
// socket. Embed it and override what the component needs.
type BaseComponent struct {
	socket *Socket
}

// SetSocket is called by the router once the live connection is up.
func (bc *BaseComponent) SetSocket(s *Socket) { bc.socket = s }

// Socket is nil during the initial HTTP render and in tests without one.
func (bc *BaseComponent) Socket() *Socket { return bc.socket }

func (bc *BaseComponent) Name() string { return "" }

func (bc *BaseComponent) Mount(context.Context, Params, Session) error { return nil }

func (bc *BaseComponent) HandleEvent(context.Context, string, map[string]any) error { return nil }

func (bc *BaseComponent) Terminate(context.Context, TerminateReason) error { return nil }
