// Package recovery keeps short-lived drafts of live component state so a
// client that loses its connection can resume where it left off.
//
// A draft is stored server-side under a random id. The client only holds a
// token: the id plus an HMAC signature, so ids cannot be guessed or forged.
package recovery

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gabrielmiguelok/crimedesk/pkg/state"
)

// Common errors.
var (
	ErrTokenInvalid  = errors.New("recovery token invalid")
	ErrStateNotFound = errors.New("recovery state not found")
)

// DefaultTTL is how long a draft survives without being saved again.
const DefaultTTL = 30 * time.Minute

// Config configures the manager.
type Config struct {
	// Store holds the drafts. Defaults to an in-memory store.
	Store state.Store
	// Secret signs tokens. A random secret is generated when empty.
	Secret []byte
	TTL    time.Duration
	Prefix string
}

// Manager saves and restores drafts.
type Manager struct {
	store  state.Store
	codec  *state.MsgPackSerializer
	secret []byte
	ttl    time.Duration
	prefix string
}

// NewManager creates a manager.
func NewManager(cfg Config) *Manager {
	if cfg.Store == nil {
		cfg.Store = state.NewMemoryStore(time.Minute)
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		rand.Read(cfg.Secret)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "recovery:"
	}
	return &Manager{
		store:  cfg.Store,
		codec:  state.NewMsgPackSerializer(),
		secret: cfg.Secret,
		ttl:    cfg.TTL,
		prefix: cfg.Prefix,
	}
}

// NewID returns a fresh draft id.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Save stores v under id, refreshing its TTL, and returns the token that
// restores it. The token of an id never changes.
func (m *Manager) Save(ctx context.Context, id string, v any) (string, error) {
	data, err := m.codec.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	if err := m.store.Set(ctx, m.prefix+id, data, m.ttl); err != nil {
		return "", fmt.Errorf("save draft: %w", err)
	}
	return m.Token(id), nil
}

// Restore verifies token, decodes the draft into v and returns its id.
func (m *Manager) Restore(ctx context.Context, token string, v any) (string, error) {
	id, err := m.verify(token)
	if err != nil {
		return "", err
	}
	data, err := m.store.Get(ctx, m.prefix+id)
	if err != nil {
		if errors.Is(err, state.ErrKeyNotFound) {
			return "", ErrStateNotFound
		}
		return "", err
	}
	if err := m.codec.Unmarshal(data, v); err != nil {
		return "", fmt.Errorf("decode draft: %w", err)
	}
	return id, nil
}

// Discard deletes the draft of id.
func (m *Manager) Discard(ctx context.Context, id string) error {
	return m.store.Delete(ctx, m.prefix+id)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// Token signs id.
func (m *Manager) Token(id string) string {
	return id + "." + m.sign(id)
}

func (m *Manager) verify(token string) (string, error) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", ErrTokenInvalid
	}
	if !hmac.Equal([]byte(sig), []byte(m.sign(id))) {
		return "", ErrTokenInvalid
	}
	return id, nil
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
