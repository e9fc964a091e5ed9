// Package protocol defines the wire protocol between the browser runtime and
// live components.
package protocol

import "strconv"

// Channel control events.
const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventHeartbeat = "heartbeat"
	EventDiff      = "diff"
	EventJS        = "js"
)

// Message represents a protocol message exchanged between client and server.
type Message struct {
	// JoinRef is the join reference for the channel
	JoinRef string `json:"join_ref,omitempty" msgpack:"join_ref,omitempty"`

	// Ref is a correlation ID for request/response matching
	Ref string `json:"ref,omitempty" msgpack:"ref,omitempty"`

	// Topic is the channel this message belongs to (e.g., "lv:socket-id")
	Topic string `json:"topic" msgpack:"topic"`

	// Event is the specific event name (e.g., "next", "locate")
	Event string `json:"event,omitempty" msgpack:"event,omitempty"`

	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// IsControl reports whether the message drives the channel rather than a component.
func (m *Message) IsControl() bool {
	switch m.Event {
	case EventJoin, EventLeave, EventHeartbeat, "phx_heartbeat":
		return true
	}
	return false
}

// GetPayloadString retrieves a string value from the payload.
func (m *Message) GetPayloadString(key string) string {
	return PayloadString(m.Payload, key)
}

// PayloadString reads key from a decoded payload as a string. Numbers are
// formatted so that values typed into inputs survive either codec.
func PayloadString(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		n, _ := toFloat(v)
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return ""
	}
}

// PayloadFloat reads key from a decoded payload as a float64.
func PayloadFloat(payload map[string]any, key string) (float64, bool) {
	if s, ok := payload[key].(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return toFloat(payload[key])
}

// PayloadInt reads key from a decoded payload as an int.
func PayloadInt(payload map[string]any, key string) (int, bool) {
	f, ok := PayloadFloat(payload, key)
	return int(f), ok
}

// PayloadBool reads key from a decoded payload as a bool.
func PayloadBool(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ReplyMessage creates a reply message.
func ReplyMessage(ref, topic, status string, response map[string]any) *Message {
	return &Message{
		Ref:   ref,
		Topic: topic,
		Event: EventReply,
		Payload: map[string]any{
			"status":   status,
			"response": response,
		},
	}
}

// OkReply creates a successful reply message.
func OkReply(ref, topic string, response map[string]any) *Message {
	return ReplyMessage(ref, topic, "ok", response)
}

// ErrorReply creates an error reply message.
func ErrorReply(ref, topic, reason string) *Message {
	return ReplyMessage(ref, topic, "error", map[string]any{"reason": reason})
}
