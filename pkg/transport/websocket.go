package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
)

// Conn is one WebSocket connection, server or client side. Frames are
// encoded by the codec; binary codecs use binary frames.
type Conn struct {
	config *Config
	policy *OriginPolicy
	codec  protocol.Codec
	log    logging.Logger

	sendCh    chan Message
	recvCh    chan Message
	closeCh   chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	ws        *websocket.Conn
	connected bool
}

// New creates an unconnected Conn. Nil arguments take defaults: the default
// config, same-origin only and JSON.
func New(config *Config, policy *OriginPolicy, codec protocol.Codec) *Conn {
	if config == nil {
		config = DefaultConfig()
	}
	if codec == nil {
		codec = protocol.NewJSONCodec()
	}
	return &Conn{
		config:  config,
		policy:  policy,
		codec:   codec,
		log:     logging.DefaultLogger,
		sendCh:  make(chan Message, config.SendBufferSize),
		recvCh:  make(chan Message, config.ReceiveBufferSize),
		closeCh: make(chan struct{}),
	}
}

// Dial connects to a live endpoint as a client.
func Dial(ctx context.Context, url string, codec protocol.Codec) (*Conn, error) {
	c := New(nil, nil, codec)
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	c.start(ws)
	return c, nil
}

// SetLogger sets the logger used for frame errors.
func (c *Conn) SetLogger(l logging.Logger) { c.log = l }

// Codec returns the frame codec.
func (c *Conn) Codec() protocol.Codec { return c.codec }

// Upgrade accepts a browser connection. A disallowed Origin gets 403 and
// ErrOriginNotAllowed.
func (c *Conn) Upgrade(w http.ResponseWriter, r *http.Request) error {
	if !c.policy.Allows(r.Header.Get("Origin"), r.Host) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return ErrOriginNotAllowed
	}

	// The origin was already checked against the policy.
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return fmt.Errorf("accept websocket: %w", err)
	}
	c.start(ws)
	return nil
}

func (c *Conn) start(ws *websocket.Conn) {
	ws.SetReadLimit(c.config.MaxMessageSize)

	c.mu.Lock()
	c.ws = ws
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
	go c.writeLoop()
	go c.pingLoop()
}

// IsConnected reports whether the connection is up.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Receive delivers decoded inbound messages.
func (c *Conn) Receive() <-chan Message { return c.recvCh }

// CloseChan is closed once the connection has shut down.
func (c *Conn) CloseChan() <-chan struct{} { return c.closeCh }

// Send queues msg for the writer.
func (c *Conn) Send(msg Message) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	select {
	case c.sendCh <- msg:
		return nil
	case <-c.closeCh:
		return ErrConnectionClosed
	case <-time.After(c.config.WriteTimeout):
		return ErrSendTimeout
	}
}

// Close shuts the connection down. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closeCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.ws == nil {
		return nil
	}
	err := c.ws.Close(websocket.StatusNormalClosure, "closing")
	c.ws = nil
	return err
}

func (c *Conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

func (c *Conn) readLoop() {
	defer c.Close()

	for {
		ws := c.current()
		if ws == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.config.ReadTimeout)
		_, data, err := ws.Read(ctx)
		cancel()
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.log.Debug("websocket read ended", logging.Err(err))
			}
			return
		}

		msg, err := c.codec.Decode(data)
		if err != nil {
			c.log.Warn("dropping malformed frame", logging.Err(err), logging.Int("bytes", len(data)))
			continue
		}

		select {
		case c.recvCh <- *msg:
		case <-c.closeCh:
			return
		default:
			c.log.Warn("receive buffer full, dropping message", logging.String("event", msg.Event))
		}
	}
}

func (c *Conn) writeLoop() {
	frame := websocket.MessageText
	if c.codec.Binary() {
		frame = websocket.MessageBinary
	}

	for {
		select {
		case msg := <-c.sendCh:
			ws := c.current()
			if ws == nil {
				return
			}
			data, err := c.codec.Encode(&msg)
			if err != nil {
				c.log.Error("encode frame", logging.Err(err), logging.String("event", msg.Event))
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
			err = ws.Write(ctx, frame, data)
			cancel()
			if err != nil {
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ws := c.current()
			if ws == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.config.WriteTimeout)
			ws.Ping(ctx)
			cancel()
		case <-c.closeCh:
			return
		}
	}
}
