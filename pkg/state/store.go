// Package state provides keyed byte storage with expiry plus typed access on
// top of it. Sessions and flash messages live here.
package state

import (
	"context"
	"errors"
	"time"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrStoreClosed = errors.New("store is closed")
	ErrInvalidData = errors.New("invalid data format")
)

// Store is the interface for state storage backends.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// Keys returns all live keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}

// Serializer converts values of T to and from bytes.
type Serializer[T any] interface {
	Serialize(value T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

// TypedStore provides type-safe access to a Store under a key prefix.
type TypedStore[T any] struct {
	store      Store
	serializer Serializer[T]
	prefix     string
}

// NewTypedStore creates a new typed store wrapper.
func NewTypedStore[T any](store Store, serializer Serializer[T], prefix string) *TypedStore[T] {
	return &TypedStore[T]{
		store:      store,
		serializer: serializer,
		prefix:     prefix,
	}
}

// Get retrieves and deserializes a value.
func (ts *TypedStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	data, err := ts.store.Get(ctx, ts.prefix+key)
	if err != nil {
		return zero, err
	}

	return ts.serializer.Deserialize(data)
}

// Set serializes and stores a value.
func (ts *TypedStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := ts.serializer.Serialize(value)
	if err != nil {
		return err
	}

	return ts.store.Set(ctx, ts.prefix+key, data, ttl)
}

// Delete removes a key.
func (ts *TypedStore[T]) Delete(ctx context.Context, key string) error {
	return ts.store.Delete(ctx, ts.prefix+key)
}

// Count returns the number of live keys under the prefix.
func (ts *TypedStore[T]) Count(ctx context.Context) (int, error) {
	keys, err := ts.store.Keys(ctx, ts.prefix+"*")
	return len(keys), err
}
