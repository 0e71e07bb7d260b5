package model

import "time"

type ChatStatus string

const (
	ChatStatusWaiting  ChatStatus = "waiting"
	ChatStatusActive   ChatStatus = "active"
	ChatStatusResolved ChatStatus = "resolved"
	ChatStatusClosed   ChatStatus = "closed"
)

var statusRank = map[ChatStatus]int{
	ChatStatusWaiting:  0,
	ChatStatusActive:   1,
	ChatStatusResolved: 2,
	ChatStatusClosed:   3,
}

// Valid reports whether s is one of the known statuses.
func (s ChatStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether the chat no longer accepts outbound messages.
func (s ChatStatus) Terminal() bool {
	return s == ChatStatusResolved || s == ChatStatusClosed
}

// CanTransition reports whether moving from s to next keeps the status
// forward-moving (waiting -> active -> resolved -> closed). Reopening is
// not supported.
func (s ChatStatus) CanTransition(next ChatStatus) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// Customer identifies the party that started a chat. SessionID is a
// client-generated token unique per browser session; it is what the
// controller compares against to drop its own echoed events.
type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	SessionID string `json:"session_id"`
}

// Agent is the shop employee handling a chat.
type Agent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Sender identifies the speaking party of one message. Display name only;
// no stable sender id is required.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type ChatMessage struct {
	ID          string      `json:"id"`
	ChatID      string      `json:"chat_id"`
	Sender      Sender      `json:"sender"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type"`
	IsRead      bool        `json:"is_read"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Chat is one support conversation. Messages are append-only, oldest-first.
type Chat struct {
	ID           string        `json:"id"`
	Customer     Customer      `json:"customer"`
	AssignedTo   *Agent        `json:"assigned_to,omitempty"`
	Status       ChatStatus    `json:"status"`
	Priority     string        `json:"priority"`
	Subject      string        `json:"subject"`
	Category     string        `json:"category"`
	Messages     []ChatMessage `json:"messages"`
	LastActivity time.Time     `json:"last_activity"`
	CreatedAt    time.Time     `json:"created_at"`
}
