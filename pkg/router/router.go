// Package router serves live components over HTTP and WebSocket.
package router

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/crimedesk/pkg/core"
	"github.com/gabrielmiguelok/crimedesk/pkg/limits"
	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/pool"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
	"github.com/gabrielmiguelok/crimedesk/pkg/transport"
)

// Common router errors.
var (
	ErrComponentNotFound = errors.New("component not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNilRenderer       = errors.New("component returned nil renderer")
)

// Observer receives live session lifecycle notifications.
type Observer interface {
	SocketOpened(route string)
	SocketClosed(route string, lifetime time.Duration)
	EventHandled(route, event string, took time.Duration, err error)
}

// Router handles HTTP routing for live components.
type Router struct {
	mux          *http.ServeMux
	liveRoutes   map[string]*LiveRoute
	middleware   []Middleware
	errorHandler ErrorHandler

	sessionManager *LiveViewSessionManager
	socketManager  *core.SocketManager

	codec      protocol.Codec
	connConfig *transport.Config
	origins    *transport.OriginPolicy

	log      logging.Logger
	observer Observer
	conns    *limits.ConnectionLimiter

	mu sync.RWMutex
}

// LiveRoute defines a route that renders a live component.
type LiveRoute struct {
	// Path is the URL path pattern.
	Path string

	// Component is the factory function for creating the component.
	Component func() core.Component

	// Middleware are route-specific middleware.
	Middleware []Middleware

	// Meta contains route metadata.
	Meta map[string]any
}

// Middleware is a function that wraps an HTTP handler.
type Middleware func(http.Handler) http.Handler

// ErrorHandler handles errors during request processing.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// New creates a new router.
func New() *Router {
	r := &Router{
		mux:            http.NewServeMux(),
		liveRoutes:     make(map[string]*LiveRoute),
		middleware:     make([]Middleware, 0),
		sessionManager: NewLiveViewSessionManager(),
		socketManager:  core.NewSocketManager(),
		codec:          protocol.NewJSONCodec(),
		connConfig:     transport.DefaultConfig(),
		origins:        &transport.OriginPolicy{},
		log:            logging.DefaultLogger,
	}
	r.errorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		logging.L(req.Context()).Error("request failed", logging.Err(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
	return r
}

// Use adds middleware to the router.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// SetErrorHandler sets the error handler.
func (r *Router) SetErrorHandler(handler ErrorHandler) {
	r.errorHandler = handler
}

// SetCodec sets the default frame codec for live connections.
func (r *Router) SetCodec(codec protocol.Codec) {
	r.codec = codec
}

// Codec returns the default frame codec.
func (r *Router) Codec() protocol.Codec {
	return r.codec
}

// SetOriginPolicy sets which origins may open live connections.
func (r *Router) SetOriginPolicy(p *transport.OriginPolicy) {
	r.origins = p
}

// SetLogger sets the logger for live sessions.
func (r *Router) SetLogger(l logging.Logger) {
	r.log = l
}

// SetObserver registers a lifecycle observer.
func (r *Router) SetObserver(o Observer) {
	r.observer = o
}

// SetConnectionLimit caps concurrent live connections per client IP.
// Zero or less removes the cap.
func (r *Router) SetConnectionLimit(maxPerIP int) {
	if maxPerIP <= 0 {
		r.conns = nil
		return
	}
	r.conns = limits.NewConnectionLimiter(maxPerIP)
}

// SessionManager returns the session manager.
func (r *Router) SessionManager() *LiveViewSessionManager {
	return r.sessionManager
}

// SocketManager returns the socket manager.
func (r *Router) SocketManager() *core.SocketManager {
	return r.socketManager
}

// Live registers a live route.
func (r *Router) Live(path string, component func() core.Component, opts ...RouteOption) {
	route := &LiveRoute{
		Path:       path,
		Component:  component,
		Middleware: make([]Middleware, 0),
		Meta:       make(map[string]any),
	}

	for _, opt := range opts {
		opt(route)
	}

	r.mu.Lock()
	r.liveRoutes[path] = route
	r.mu.Unlock()

	r.mux.HandleFunc(path, r.handleLive(route))
}

// Handle registers a standard HTTP handler behind the global middleware.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.mux.Handle(pattern, r.wrap(handler))
}

// HandleFunc registers a standard HTTP handler function.
func (r *Router) HandleFunc(pattern string, handler http.HandlerFunc) {
	r.Handle(pattern, handler)
}

// Static serves an http.FileSystem under prefix.
func (r *Router) Static(prefix string, fsys http.FileSystem) {
	r.mux.Handle(prefix, http.StripPrefix(prefix, http.FileServer(fsys)))
}

// Group creates a route group with shared prefix and middleware.
func (r *Router) Group(prefix string, fn func(*RouteGroup)) {
	group := &RouteGroup{
		router:     r,
		prefix:     prefix,
		middleware: make([]Middleware, 0),
	}
	fn(group)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Shutdown closes every live connection.
func (r *Router) Shutdown(ctx context.Context) error {
	return r.socketManager.Shutdown(ctx)
}

// Reap closes live sessions idle for longer than maxIdle.
func (r *Router) Reap(maxIdle time.Duration) int {
	expired := r.sessionManager.Expired(maxIdle)
	for _, s := range expired {
		r.log.Debug("reaping idle live session", logging.SocketID(s.SocketID))
		r.handleDisconnect(s, core.TerminateIdle)
	}
	return len(expired)
}

func (r *Router) wrap(h http.Handler) http.Handler {
	r.mu.RLock()
	middleware := make([]Middleware, len(r.middleware))
	copy(middleware, r.middleware)
	r.mu.RUnlock()

	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

// handleLive creates the HTTP handler for a live route.
func (r *Router) handleLive(route *LiveRoute) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			r.renderLive(w, req, route)
		})

		for i := len(route.Middleware) - 1; i >= 0; i-- {
			handler = route.Middleware[i](handler)
		}

		r.wrap(handler).ServeHTTP(w, req)
	}
}

// renderLive renders a live component, or upgrades the request to a live connection.
func (r *Router) renderLive(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	if isWebSocketRequest(req) {
		r.handleWebSocket(w, req, route)
		return
	}

	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	component := route.Component()
	params := extractParams(req)
	session := r.extractSession(req)
	ctx := req.Context()

	if err := component.Mount(ctx, params, session); err != nil {
		r.errorHandler(w, req, err)
		return
	}

	renderer := component.Render(ctx)
	if renderer == nil {
		r.errorHandler(w, req, ErrNilRenderer)
		return
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if err := renderer.Render(ctx, buf); err != nil {
		r.errorHandler(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleWebSocket upgrades the request and starts the live session loop.
func (r *Router) handleWebSocket(w http.ResponseWriter, req *http.Request, route *LiveRoute) {
	codec := r.codec
	if name := req.URL.Query().Get("codec"); name != "" {
		c, err := protocol.Lookup(name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		codec = c
	}

	release := func() {}
	if conns := r.conns; conns != nil {
		ip := limits.ClientIP(req)
		if !conns.Acquire(ip) {
			r.log.Warn("live connection refused", logging.String("ip", ip), logging.String("route", route.Path))
			http.Error(w, "Too Many Connections", http.StatusTooManyRequests)
			return
		}
		release = func() { conns.Release(ip) }
	}

	socketID := uuid.NewString()
	log := r.log.With(logging.SocketID(socketID), logging.String("route", route.Path))

	conn := transport.New(r.connConfig, r.origins, codec)
	conn.SetLogger(log)
	if err := conn.Upgrade(w, req); err != nil {
		release()
		log.Warn("websocket upgrade failed", logging.Err(err))
		return
	}

	component := route.Component()
	socket := core.NewSocket(socketID, socketConn{conn})
	session := r.extractSession(req)
	params := extractParams(req)

	if bc, ok := component.(interface{ SetSocket(*core.Socket) }); ok {
		bc.SetSocket(socket)
	}

	lvSession := r.sessionManager.Create(socketID, component, params, session)
	lvSession.Route = route.Path
	lvSession.Transport = conn
	lvSession.Socket = socket
	lvSession.Log = log

	r.socketManager.Add(socket)
	if r.observer != nil {
		r.observer.SocketOpened(route.Path)
	}
	log.Debug("live session opened")

	// The connection outlives the upgrade request, so the loop gets its own context.
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.ContextWithLogger(ctx, log)
	go r.messageLoop(ctx, lvSession)

	go func() {
		<-conn.CloseChan()
		cancel()
		release()
		r.handleDisconnect(lvSession, core.TerminateNormal)
	}()
}

// messageLoop processes incoming messages for one session sequentially.
func (r *Router) messageLoop(ctx context.Context, session *LiveViewSession) {
	recvCh := session.Transport.Receive()

	for {
		select {
		case msg, ok := <-recvCh:
			if !ok {
				return
			}

			session.UpdateActivity()

			switch msg.Event {
			case protocol.EventHeartbeat, "phx_heartbeat":
				r.sendReply(session, msg.Ref, msg.Topic, nil)

			case protocol.EventJoin:
				session.withComponent(func() { r.handleJoin(ctx, session, msg) })

			case protocol.EventLeave:
				r.handleDisconnect(session, core.TerminateNormal)
				return

			default:
				if !session.withComponent(func() { r.handleEvent(ctx, session, msg) }) {
					return
				}
			}

		case <-ctx.Done():
			return
		}
	}
}

// handleEvent dispatches one event and sends the resulting diff.
func (r *Router) handleEvent(ctx context.Context, session *LiveViewSession, msg transport.Message) {
	start := time.Now()
	err := r.dispatchEvent(ctx, session, msg)
	if r.observer != nil {
		r.observer.EventHandled(session.Route, msg.Event, time.Since(start), err)
	}
	if err != nil {
		session.Log.Warn("event failed", logging.String("event", msg.Event), logging.Err(err))
		r.sendError(session, msg.Ref, msg.Topic, err)
		return
	}
	r.renderAndSendDiff(ctx, session)
}

// handleJoin mounts the component and replies with its first render.
func (r *Router) handleJoin(ctx context.Context, session *LiveViewSession, msg transport.Message) {
	session.SetJoinRef(msg.JoinRef)

	if !session.IsMounted() {
		if err := session.Component.Mount(ctx, session.Params, session.Session); err != nil {
			r.sendError(session, msg.Ref, msg.Topic, err)
			return
		}
		session.SetMounted(true)
	}

	html, err := r.render(ctx, session.Component)
	if err != nil {
		r.sendError(session, msg.Ref, msg.Topic, err)
		return
	}

	// Prime slot hashes so the first event only ships what changed.
	text, markup := extractSlotsOptimized(html)
	hashes := make(map[string]uint64, len(text)+len(markup))
	for id, content := range text {
		hashes[id] = hashSlotContent(content)
	}
	for id, content := range markup {
		hashes[id] = hashSlotContent(content)
	}
	session.SetSlotHashes(hashes)

	r.sendReply(session, msg.Ref, msg.Topic, map[string]any{
		"rendered": map[string]any{
			"s": []string{html},
		},
	})
}

// dispatchEvent dispatches a user event to the component.
func (r *Router) dispatchEvent(ctx context.Context, session *LiveViewSession, msg transport.Message) error {
	if !session.IsMounted() {
		return fmt.Errorf("%w: event %q before join", ErrSessionNotFound, msg.Event)
	}
	payload := msg.Payload
	if payload == nil {
		payload = make(map[string]any)
	}
	return session.Component.HandleEvent(ctx, msg.Event, payload)
}

func (r *Router) render(ctx context.Context, component core.Component) (string, error) {
	renderer := component.Render(ctx)
	if renderer == nil {
		return "", ErrNilRenderer
	}
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)
	if err := renderer.Render(ctx, buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderAndSendDiff renders the component and sends the slots that changed.
func (r *Router) renderAndSendDiff(ctx context.Context, session *LiveViewSession) {
	html, err := r.render(ctx, session.Component)
	if err != nil {
		session.Log.Error("render failed", logging.Err(err))
		return
	}

	payload := buildDiffPayload(session, html)
	if payload.IsEmpty() {
		return
	}
	if err := session.Socket.SendDiff(payload); err != nil {
		session.Log.Debug("diff not delivered", logging.Err(err))
	}
}

// buildDiffPayload compares slot hashes against the previous render.
func buildDiffPayload(session *LiveViewSession, html string) *core.DiffPayload {
	payload := &core.DiffPayload{
		Version:   session.NextVersion(),
		Slots:     make(map[string]string),
		HTMLSlots: make(map[string]string),
	}

	textSlots, htmlSlots := extractSlotsOptimized(html)
	prevHashes := session.GetSlotHashes()
	newHashes := make(map[string]uint64, len(textSlots)+len(htmlSlots))

	for id, content := range textSlots {
		hash := hashSlotContent(content)
		newHashes[id] = hash
		if prevHashes == nil || prevHashes[id] != hash {
			payload.Slots[id] = content
		}
	}

	for id, content := range htmlSlots {
		hash := hashSlotContent(content)
		newHashes[id] = hash
		if prevHashes == nil || prevHashes[id] != hash {
			payload.HTMLSlots[id] = content
		}
	}

	session.SetSlotHashes(newHashes)

	// Components without slots get a full re-render.
	if len(textSlots) == 0 && len(htmlSlots) == 0 {
		payload.Full = html
	}

	return payload
}

// extractSlotsOptimized extracts data-slot content in a single pass.
func extractSlotsOptimized(html string) (textSlots, htmlSlots map[string]string) {
	textSlots = make(map[string]string)
	htmlSlots = make(map[string]string)

	const marker = `data-slot="`
	markerLen := len(marker)
	htmlLen := len(html)
	pos := 0

	for pos < htmlLen {
		idx := strings.Index(html[pos:], marker)
		if idx == -1 {
			break
		}

		slotStart := pos + idx + markerLen

		slotEnd := strings.IndexByte(html[slotStart:], '"')
		if slotEnd == -1 {
			pos = slotStart
			continue
		}

		slotID := html[slotStart : slotStart+slotEnd]

		// Walk back to the opening '<' of the tag carrying the marker.
		tagStart := pos + idx
		for tagStart > 0 && html[tagStart] != '<' {
			tagStart--
		}

		tagNameEnd := tagStart + 1
		for tagNameEnd < htmlLen && html[tagNameEnd] != ' ' && html[tagNameEnd] != '>' && html[tagNameEnd] != '/' {
			tagNameEnd++
		}
		tagName := html[tagStart+1 : tagNameEnd]

		closeAngle := strings.IndexByte(html[slotStart+slotEnd:], '>')
		if closeAngle == -1 {
			pos = slotStart + slotEnd
			continue
		}

		contentStart := slotStart + slotEnd + closeAngle + 1

		openTag := "<" + tagName
		closeTag := "</" + tagName
		openTagLen := len(openTag)
		closeTagLen := len(closeTag)

		depth := 1
		searchPos := contentStart
		contentEnd := -1

		for depth > 0 && searchPos < htmlLen {
			nextOpen := strings.Index(html[searchPos:], openTag)
			nextClose := strings.Index(html[searchPos:], closeTag)

			if nextClose == -1 {
				break
			}

			if nextOpen != -1 {
				nextOpen += searchPos
			} else {
				nextOpen = htmlLen
			}
			nextClose += searchPos

			if nextOpen < nextClose {
				afterOpen := nextOpen + openTagLen
				if afterOpen < htmlLen {
					nextChar := html[afterOpen]
					if nextChar == ' ' || nextChar == '>' || nextChar == '/' || nextChar == '\t' || nextChar == '\n' {
						depth++
					}
				}
				searchPos = nextOpen + openTagLen
			} else {
				depth--
				if depth == 0 {
					contentEnd = nextClose
				}
				searchPos = nextClose + closeTagLen
			}
		}

		if contentEnd != -1 {
			content := strings.TrimSpace(html[contentStart:contentEnd])

			if strings.ContainsAny(content, "<>") {
				htmlSlots[slotID] = content
			} else {
				textSlots[slotID] = content
			}
		}

		pos = searchPos
	}

	return textSlots, htmlSlots
}

// hashSlotContent computes the FNV-64a hash of slot content.
func hashSlotContent(content string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(content))
	return h.Sum64()
}

// handleDisconnect tears a session down. Only the first call has any effect.
func (r *Router) handleDisconnect(session *LiveViewSession, reason core.TerminateReason) {
	session.closeOnce.Do(func() {
		if err := session.terminate(context.Background(), reason); err != nil {
			session.Log.Warn("terminate failed", logging.Err(err))
		}

		if session.Socket != nil {
			session.Socket.Close()
		}
		if session.Transport != nil {
			session.Transport.Close()
		}

		if r.observer != nil {
			r.observer.SocketClosed(session.Route, time.Since(session.CreatedAt))
		}
		session.Log.Debug("live session closed", logging.String("reason", reason.String()))

		r.sessionManager.Remove(session.ID)
		r.socketManager.Remove(session.SocketID)
	})
}

// sendReply sends a reply message to the client.
func (r *Router) sendReply(session *LiveViewSession, ref, topic string, response map[string]any) {
	msg := protocol.OkReply(ref, topic, response)
	msg.JoinRef = session.GetJoinRef()
	if err := session.Transport.Send(*msg); err != nil {
		session.Log.Debug("reply not delivered", logging.Err(err))
	}
}

// sendError sends an error reply to the client.
func (r *Router) sendError(session *LiveViewSession, ref, topic string, err error) {
	msg := protocol.ErrorReply(ref, topic, err.Error())
	msg.JoinRef = session.GetJoinRef()
	session.Transport.Send(*msg)
}

// extractSession projects the authenticated user and CSRF token into session data.
func (r *Router) extractSession(req *http.Request) core.Session {
	session := make(core.Session)

	if auth := security.AuthFromContext(req.Context()); auth != nil {
		session[core.SessionUserID] = auth.UserID
		session[core.SessionUsername] = auth.Username
		session[core.SessionAdmin] = auth.Admin
		session[core.SessionID] = auth.SessionID
	}
	if token := security.Token(req); token != "" {
		session[core.SessionCSRFToken] = token
	}

	return session
}

// extractParams extracts query string parameters.
func extractParams(req *http.Request) core.Params {
	params := make(core.Params)

	for key, values := range req.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	return params
}

// isWebSocketRequest checks if this is a WebSocket upgrade request.
func isWebSocketRequest(req *http.Request) bool {
	return strings.Contains(strings.ToLower(req.Header.Get("Upgrade")), "websocket")
}

// RouteGroup represents a group of routes with shared prefix/middleware.
type RouteGroup struct {
	router     *Router
	prefix     string
	middleware []Middleware
}

// Use adds middleware to the group.
func (g *RouteGroup) Use(mw Middleware) {
	g.middleware = append(g.middleware, mw)
}

// Live registers a live route in the group.
func (g *RouteGroup) Live(path string, component func() core.Component, opts ...RouteOption) {
	opts = append([]RouteOption{WithRouteMiddleware(g.middleware...)}, opts...)
	g.router.Live(g.prefix+path, component, opts...)
}

// Handle registers a handler in the group.
func (g *RouteGroup) Handle(pattern string, handler http.Handler) {
	h := handler
	for i := len(g.middleware) - 1; i >= 0; i-- {
		h = g.middleware[i](h)
	}
	g.router.Handle(pattern, h)
}

// Get registers a GET handler.
func (g *RouteGroup) Get(pattern string, handler http.HandlerFunc) {
	g.Handle("GET "+g.prefix+pattern, handler)
}

// Post registers a POST handler.
func (g *RouteGroup) Post(pattern string, handler http.HandlerFunc) {
	g.Handle("POST "+g.prefix+pattern, handler)
}

// RouteOption configures a LiveRoute.
type RouteOption func(*LiveRoute)

// WithRouteMiddleware adds middleware to the route.
func WithRouteMiddleware(mw ...Middleware) RouteOption {
	return func(r *LiveRoute) {
		r.Middleware = append(r.Middleware, mw...)
	}
}

// WithMeta adds metadata to the route.
func WithMeta(key string, value any) RouteOption {
	return func(r *LiveRoute) {
		r.Meta[key] = value
	}
}
