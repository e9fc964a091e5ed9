package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Common codec errors.
var (
	ErrInvalidMessage = errors.New("invalid message format")
	ErrUnknownCodec   = errors.New("unknown codec type")
)

// Codec handles message encoding/decoding.
type Codec interface {
	// Encode serializes a message to bytes.
	Encode(msg *Message) ([]byte, error)

	// Decode deserializes bytes to a message.
	Decode(data []byte) (*Message, error)

	// Name returns the codec name.
	Name() string

	// Binary reports whether frames carry binary data.
	Binary() bool
}

// Lookup returns the codec registered under name.
func Lookup(name string) (Codec, error) {
	switch name {
	case "", "json", "phoenix":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgPackCodec(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// tuple is the positional frame layout: [join_ref, ref, topic, event, payload].
func tuple(msg *Message) []any {
	var joinRef, ref any
	if msg.JoinRef != "" {
		joinRef = msg.JoinRef
	}
	if msg.Ref != "" {
		ref = msg.Ref
	}
	payload := msg.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return []any{joinRef, ref, msg.Topic, msg.Event, payload}
}

func fromTuple(parts []any) (*Message, error) {
	if len(parts) != 5 {
		return nil, ErrInvalidMessage
	}
	topic, ok := parts[2].(string)
	if !ok {
		return nil, ErrInvalidMessage
	}
	event, ok := parts[3].(string)
	if !ok {
		return nil, ErrInvalidMessage
	}

	msg := &Message{Topic: topic, Event: event}
	msg.JoinRef, _ = parts[0].(string)
	msg.Ref, _ = parts[1].(string)

	switch p := parts[4].(type) {
	case map[string]any:
		msg.Payload = p
	case nil:
		msg.Payload = make(map[string]any)
	default:
		return nil, ErrInvalidMessage
	}
	return msg, nil
}

// JSONCodec implements the tuple format as JSON text frames. It is what the
// browser runtime speaks.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode encodes a message to a JSON tuple.
func (c *JSONCodec) Encode(msg *Message) ([]byte, error) {
	return json.Marshal(tuple(msg))
}

// Decode decodes a JSON tuple to a message.
func (c *JSONCodec) Decode(data []byte) (*Message, error) {
	var parts []any
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return fromTuple(parts)
}

// Name returns "json".
func (c *JSONCodec) Name() string {
	return "json"
}

// Binary returns false.
func (c *JSONCodec) Binary() bool {
	return false
}

// MsgPackCodec implements the tuple format as MessagePack binary frames.
type MsgPackCodec struct{}

// NewMsgPackCodec creates a new MsgPack codec.
func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

// Encode encodes a message to a MsgPack tuple.
func (c *MsgPackCodec) Encode(msg *Message) ([]byte, error) {
	return msgpack.Marshal(tuple(msg))
}

// Decode decodes a MsgPack tuple to a message.
func (c *MsgPackCodec) Decode(data []byte) (*Message, error) {
	var parts []any
	if err := msgpack.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return fromTuple(parts)
}

// Name returns "msgpack".
func (c *MsgPackCodec) Name() string {
	return "msgpack"
}

// Binary returns true.
func (c *MsgPackCodec) Binary() bool {
	return true
}
