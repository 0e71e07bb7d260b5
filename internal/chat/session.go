// Package chat drives one support conversation from the customer side: it
// creates the chat over HTTP, joins its room on the transport connection,
// folds inbound room events into local state and sends outbound messages.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/notify"
	"github.com/garagedesk/internal/transport"
)

// DefaultTypingClearTTL is how long the "agent is typing" flag survives
// without a fresh typing event. Tunable via config.
const DefaultTypingClearTTL = 3 * time.Second

const refetchTimeout = 5 * time.Second

var (
	ErrNoActiveChat = errors.New("chat: no active chat")
	ErrNameRequired = errors.New("chat: customer name required")
	ErrChatClosed   = errors.New("chat: conversation is closed")
)

// RoomConn is the slice of the transport connection the controller needs.
// *transport.Conn implements it.
type RoomConn interface {
	Join(chatID string) error
	SendMessage(chatID string, msg model.ChatMessage, sessionID string) error
	SendTyping(chatID, userID string) error
}

// Session is the controller for one active chat. Wire HandleEvent as the
// transport's chat handler; events scoped to other chat ids are ignored,
// so several sessions can share one connection.
type Session struct {
	api       *Client
	conn      RoomConn
	toaster   notify.Toaster
	typingTTL time.Duration

	// OnUpdate, when set before Start, is called after every accepted
	// state change (new message, typing flag, reconciled chat).
	OnUpdate func()

	mu          sync.Mutex
	chat        *model.Chat
	agentTyping bool
	typingTimer *time.Timer
}

func NewSession(api *Client, conn RoomConn, toaster notify.Toaster, typingTTL time.Duration) *Session {
	if toaster == nil {
		toaster = notify.LogToaster{}
	}
	if typingTTL <= 0 {
		typingTTL = DefaultTypingClearTTL
	}
	return &Session{api: api, conn: conn, toaster: toaster, typingTTL: typingTTL}
}

// Start creates the chat (the hub records the first message as part of
// creation) and joins its room. On HTTP failure nothing is kept locally;
// the caller surfaces the error to the user.
func (s *Session) Start(ctx context.Context, customer model.Customer, subject, category, firstMessage string) error {
	if customer.Name == "" {
		return ErrNameRequired
	}
	chat, err := s.api.CreateChat(ctx, CreateChatRequest{
		Customer:       customer,
		Subject:        subject,
		Category:       category,
		InitialMessage: firstMessage,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.chat = chat
	s.mu.Unlock()

	// Join is best-effort: if the connection is down the room is re-joined
	// automatically on the next reconnect.
	if err := s.conn.Join(chat.ID); err != nil {
		logger.Errorf("chat: join room %s: %v", chat.ID, err)
	}
	s.notifyUpdate()
	return nil
}

// Send persists the message over HTTP first; only on success is it
// appended locally and relayed on the transport so the other participants
// see it. The local session never re-appends its own echoed event.
func (s *Session) Send(ctx context.Context, content string, messageType model.MessageType) error {
	s.mu.Lock()
	chat := s.chat
	s.mu.Unlock()
	if chat == nil {
		return ErrNoActiveChat
	}
	if chat.Status.Terminal() {
		return ErrChatClosed
	}
	if messageType == "" {
		messageType = model.MessageTypeText
	}

	msg, err := s.api.PostMessage(ctx, chat.ID, PostMessageRequest{
		Content:     content,
		MessageType: messageType,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.chat != nil && s.chat.ID == chat.ID {
		s.chat.Messages = append(s.chat.Messages, *msg)
		s.chat.LastActivity = msg.CreatedAt
	}
	sessionID := chat.Customer.SessionID
	s.mu.Unlock()

	if err := s.conn.SendMessage(chat.ID, *msg, sessionID); err != nil {
		// The message is persisted; only the realtime relay failed. Not
		// retried at this layer.
		logger.Errorf("chat: relay message %s: %v", msg.ID, err)
	}
	s.notifyUpdate()
	return nil
}

// Typing announces that the customer is composing a message.
func (s *Session) Typing() {
	s.mu.Lock()
	chat := s.chat
	s.mu.Unlock()
	if chat == nil {
		return
	}
	if err := s.conn.SendTyping(chat.ID, chat.Customer.SessionID); err != nil {
		logger.Errorf("chat: send typing: %v", err)
	}
}

// HandleEvent folds one decoded transport event into session state. Events
// for other chats are ignored; late events after resolve/close are still
// consumed without error.
func (s *Session) HandleEvent(ev transport.Event) {
	s.mu.Lock()
	chat := s.chat
	s.mu.Unlock()
	if chat == nil || ev.ChatID() != chat.ID {
		return
	}

	switch ev.Type {
	case transport.EventMessage:
		s.handleMessage(ev.Message)
	case transport.EventTyping:
		s.handleTyping(ev.Typing)
	case transport.EventAssignment:
		s.toaster.Show(notify.Toast{
			Style:    notify.ToastInfo,
			Title:    "Chat assigned",
			Message:  ev.Assignment.AssignedTo.Name + " is handling your request",
			Duration: 5 * time.Second,
		})
		s.refetch(chat.ID)
	case transport.EventStatusChange:
		s.toaster.Show(notify.Toast{
			Style:    notify.ToastInfo,
			Title:    "Chat updated",
			Message:  "Status changed to " + string(ev.Status.Status),
			Duration: 5 * time.Second,
		})
		s.refetch(chat.ID)
	}
}

func (s *Session) handleMessage(p *transport.MessagePayload) {
	s.mu.Lock()
	if s.chat == nil {
		s.mu.Unlock()
		return
	}
	// Our own message comes back tagged with our session id; it was already
	// appended on the successful HTTP post.
	if p.SessionID != "" && p.SessionID == s.chat.Customer.SessionID {
		s.mu.Unlock()
		return
	}
	s.chat.Messages = append(s.chat.Messages, p.Message)
	if !p.Message.CreatedAt.IsZero() {
		s.chat.LastActivity = p.Message.CreatedAt
	} else {
		s.chat.LastActivity = time.Now().UTC()
	}
	s.mu.Unlock()
	s.notifyUpdate()
}

func (s *Session) handleTyping(p *transport.TypingPayload) {
	s.mu.Lock()
	if s.chat == nil || p.UserID == s.chat.Customer.SessionID {
		s.mu.Unlock()
		return
	}
	s.agentTyping = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.typingTTL, func() {
		s.mu.Lock()
		s.agentTyping = false
		s.mu.Unlock()
		s.notifyUpdate()
	})
	s.mu.Unlock()
	s.notifyUpdate()
}

// refetch reconciles the local record with the hub after an assignment or
// status event. Failure is surfaced as a toast; local state is left as-is.
func (s *Session) refetch(chatID string) {
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()
	chat, err := s.api.GetChat(ctx, chatID)
	if err != nil {
		logger.Errorf("chat: refetch %s: %v", chatID, err)
		s.toaster.Show(notify.Toast{
			Style:    notify.ToastError,
			Title:    "Failed to load chat",
			Message:  "Could not refresh the conversation",
			Duration: 5 * time.Second,
		})
		return
	}
	s.mu.Lock()
	if s.chat != nil && s.chat.ID == chatID {
		s.chat = chat
	}
	s.mu.Unlock()
	s.notifyUpdate()
}

// Chat returns a snapshot of the active chat, or nil before Start.
func (s *Session) Chat() *model.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chat == nil {
		return nil
	}
	cp := *s.chat
	cp.Messages = make([]model.ChatMessage, len(s.chat.Messages))
	copy(cp.Messages, s.chat.Messages)
	return &cp
}

// AgentTyping reports the transient typing flag.
func (s *Session) AgentTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentTyping
}

// Close stops the typing timer. The transport connection is shared and
// stays up.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *Session) notifyUpdate() {
	if s.OnUpdate != nil {
		s.OnUpdate()
	}
}
