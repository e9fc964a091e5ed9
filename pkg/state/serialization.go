package state

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	markerPlain   byte = 0
	markerGzipped byte = 1
)

// MsgPackSerializer encodes values with MessagePack. Payloads at or above
// CompressionThreshold are gzipped. The first byte marks which.
type MsgPackSerializer struct {
	UseCompression       bool
	CompressionThreshold int
}

// NewMsgPackSerializer creates a serializer that compresses payloads of 1KB or more.
func NewMsgPackSerializer() *MsgPackSerializer {
	return &MsgPackSerializer{
		UseCompression:       true,
		CompressionThreshold: 1024,
	}
}

// Marshal serializes a value to bytes.
func (s *MsgPackSerializer) Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, err
	}

	if s.UseCompression && len(data) >= s.CompressionThreshold {
		var buf bytes.Buffer
		buf.WriteByte(markerGzipped)
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return nil, err
		}
		if err := gz.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	return append([]byte{markerPlain}, data...), nil
}

// Unmarshal deserializes bytes produced by Marshal.
func (s *MsgPackSerializer) Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return ErrInvalidData
	}

	payload := data[1:]
	switch data[0] {
	case markerPlain:
	case markerGzipped:
		gz, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		defer gz.Close()
		if payload, err = io.ReadAll(gz); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	default:
		return ErrInvalidData
	}

	return msgpack.Unmarshal(payload, v)
}

// GenericSerializer implements Serializer[T] on top of MsgPackSerializer.
type GenericSerializer[T any] struct {
	inner *MsgPackSerializer
}

// NewGenericSerializer creates a new generic serializer.
func NewGenericSerializer[T any]() *GenericSerializer[T] {
	return &GenericSerializer[T]{inner: NewMsgPackSerializer()}
}

// Serialize serializes a value.
func (s *GenericSerializer[T]) Serialize(value T) ([]byte, error) {
	return s.inner.Marshal(value)
}

// Deserialize deserializes a value.
func (s *GenericSerializer[T]) Deserialize(data []byte) (T, error) {
	var value T
	err := s.inner.Unmarshal(data, &value)
	return value, err
}
