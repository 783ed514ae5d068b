package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the intent of a frame.
type EventType string

const (
	EventLogin        EventType = "login"
	EventSendMessage  EventType = "sendMessage"
	EventLogout       EventType = "logout"
	EventMessage      EventType = "message"
	EventNotification EventType = "notification"
	EventAck          EventType = "ack"
)

// Envelope wraps every payload sent over the wire. ID is chosen by the
// client on requests and echoed on the matching ack.
type Envelope struct {
	Event EventType       `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LoginRequest asks to join Room under display name Name.
type LoginRequest struct {
	Name string `json:"name"`
	Room string `json:"room"`
}

// SendMessageRequest carries chat text. On the wire it is either {"text": ...}
// or a bare JSON string.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts both accepted shapes.
func (r *SendMessageRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &r.Text)
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected string or object, got %s", describe(trimmed))
	}
	type plain SendMessageRequest
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = SendMessageRequest(p)
	return nil
}

// MessagePayload is a chat line delivered to room members.
type MessagePayload struct {
	User      string    `json:"user"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationPayload announces a membership change.
type NotificationPayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// AckPayload answers a request. Error is null on success; History is only
// present on a successful login.
type AckPayload struct {
	Error   *string           `json:"error"`
	History *[]MessagePayload `json:"history,omitempty"`
}

// OK reports whether the request succeeded.
func (a AckPayload) OK() bool {
	return a.Error == nil
}

// Reason returns the error text, empty on success.
func (a AckPayload) Reason() string {
	if a.Error == nil {
		return ""
	}
	return *a.Error
}

// OKAck acknowledges a request without data.
func OKAck() AckPayload {
	return AckPayload{}
}

// ErrorAck rejects a request with a client visible reason.
func ErrorAck(reason string) AckPayload {
	return AckPayload{Error: &reason}
}

// LoginAck acknowledges a login with the room history, oldest first. The
// history key is always present, even when empty.
func LoginAck(history []MessagePayload) AckPayload {
	if history == nil {
		history = []MessagePayload{}
	}
	return AckPayload{History: &history}
}

func describe(data []byte) string {
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case 'n':
		return "null"
	case 't', 'f':
		return "boolean"
	case '[':
		return "array"
	default:
		return "number"
	}
}
