package transport

import (
	"encoding/json"
	"fmt"

	"github.com/garagedesk/internal/model"
)

type EventType string

const (
	// Server -> client events.
	EventNotification EventType = "notification"
	EventMessage      EventType = "message"
	EventTyping       EventType = "typing"
	EventAssignment   EventType = "assignment"
	EventStatusChange EventType = "status_change"
	EventError        EventType = "error"

	// Client -> server commands.
	CommandJoin        EventType = "join"
	CommandSendMessage EventType = "send_message"
	CommandTyping      EventType = "typing"
)

// Frame is the wire envelope in both directions.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is what a client sends to the hub endpoint.
type Command struct {
	Type      EventType          `json:"type"`
	ChatID    string             `json:"chat_id,omitempty"`
	SessionID string             `json:"session_id,omitempty"`
	Message   *model.ChatMessage `json:"message,omitempty"`
}

// MessagePayload delivers one chat message to room members. SessionID is
// the origin session so that the sender's own controller can drop its echo.
type MessagePayload struct {
	ChatID    string            `json:"chat_id"`
	SessionID string            `json:"session_id,omitempty"`
	Message   model.ChatMessage `json:"message"`
}

// TypingPayload signals that UserID is typing in a chat. For customers
// UserID is their session id; for agents their user id.
type TypingPayload struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// AssignmentPayload announces the handling agent of a chat.
type AssignmentPayload struct {
	ChatID     string      `json:"chat_id"`
	AssignedTo model.Agent `json:"assigned_to"`
}

// StatusPayload announces a chat status transition.
type StatusPayload struct {
	ChatID string           `json:"chat_id"`
	Status model.ChatStatus `json:"status"`
}

// Event is the decoded tagged union of everything the server pushes.
// Exactly one payload field is non-nil, matching Type.
type Event struct {
	Type         EventType
	Notification *model.NotificationInput
	Message      *MessagePayload
	Typing       *TypingPayload
	Assignment   *AssignmentPayload
	Status       *StatusPayload
}

// ChatID returns the chat identifier the event is scoped to, or "" for
// events without one (notifications).
func (e Event) ChatID() string {
	switch {
	case e.Message != nil:
		return e.Message.ChatID
	case e.Typing != nil:
		return e.Typing.ChatID
	case e.Assignment != nil:
		return e.Assignment.ChatID
	case e.Status != nil:
		return e.Status.ChatID
	}
	return ""
}

// ParseEvent decodes one inbound frame at the single validation chokepoint.
// Malformed frames and unknown event types come back as errors so the
// connection can drop them with a logged warning instead of crashing.
func ParseEvent(raw []byte) (Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, fmt.Errorf("parse frame: %w", err)
	}
	ev := Event{Type: f.Type}
	switch f.Type {
	case EventNotification:
		var p model.NotificationInput
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("parse notification payload: %w", err)
		}
		ev.Notification = &p
	case EventMessage:
		var p MessagePayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("parse message payload: %w", err)
		}
		ev.Message = &p
	case EventTyping:
		var p TypingPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("parse typing payload: %w", err)
		}
		ev.Typing = &p
	case EventAssignment:
		var p AssignmentPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("parse assignment payload: %w", err)
		}
		ev.Assignment = &p
	case EventStatusChange:
		var p StatusPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Event{}, fmt.Errorf("parse status payload: %w", err)
		}
		ev.Status = &p
	case EventError:
		// Server-side rejection of a command; payload is a plain string.
	default:
		return Event{}, fmt.Errorf("unknown event type %q", f.Type)
	}
	return ev, nil
}
