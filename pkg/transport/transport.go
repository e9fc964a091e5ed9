// Package transport carries protocol messages between the browser runtime and
// the server over WebSocket.
//
// A Conn owns three goroutines once connected: a reader that decodes frames
// into Receive, a writer that drains Send, and a pinger. Closing the Conn
// stops all three and closes CloseChan.
package transport

import (
	"errors"
	"net/url"
	"time"

	"github.com/gabrielmiguelok/crimedesk/pkg/protocol"
)

// Common transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// Message is the unit carried by a connection.
type Message = protocol.Message

// Config holds connection timeouts and buffer sizes.
type Config struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration

	// MaxMessageSize caps an inbound frame in bytes.
	MaxMessageSize int64

	SendBufferSize    int
	ReceiveBufferSize int
}

// DefaultConfig suits the wizard: small frames, a ping well inside common
// proxy idle timeouts.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    512 << 10,
		SendBufferSize:    256,
		ReceiveBufferSize: 256,
	}
}

// OriginPolicy decides which browser origins may open a live connection.
// The zero value allows same-origin requests only.
type OriginPolicy struct {
	// AllowedOrigins lists extra origins. "*" allows any.
	AllowedOrigins []string

	// InsecureDevMode disables the check. Never enable in production.
	InsecureDevMode bool
}

// Allows reports whether a request for host carrying origin may upgrade.
// A request without an Origin header is not cross-site and is allowed.
func (p *OriginPolicy) Allows(origin, host string) bool {
	if p == nil {
		p = &OriginPolicy{}
	}
	if p.InsecureDevMode || origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}
	for _, allowed := range p.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if a, err := url.Parse(allowed); err == nil && a.Host != "" && a.Host == u.Host {
			return true
		}
	}
	return false
}
