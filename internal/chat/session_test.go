package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/notify"
	"github.com/garagedesk/internal/transport"
)

type fakeConn struct {
	mu       sync.Mutex
	joined   []string
	sent     []transport.Command
	joinErr  error
	relayErr error
}

func (f *fakeConn) Join(chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, chatID)
	return f.joinErr
}

func (f *fakeConn) SendMessage(chatID string, msg model.ChatMessage, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, transport.Command{
		Type: transport.CommandSendMessage, ChatID: chatID, SessionID: sessionID, Message: &msg,
	})
	return f.relayErr
}

func (f *fakeConn) SendTyping(chatID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, transport.Command{
		Type: transport.CommandTyping, ChatID: chatID, SessionID: userID,
	})
	return nil
}

func (f *fakeConn) commands() []transport.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]transport.Command, len(f.sent))
	copy(cp, f.sent)
	return cp
}

type nopToaster struct {
	mu     sync.Mutex
	toasts []notify.Toast
}

func (n *nopToaster) Show(t notify.Toast) {
	n.mu.Lock()
	n.toasts = append(n.toasts, t)
	n.mu.Unlock()
}

// fakeHub is an httptest chat API: creates chats with predictable ids and
// records posted messages.
func fakeHub(t *testing.T) (*httptest.Server, *struct {
	mu    sync.Mutex
	chats map[string]*model.Chat
	posts int
}) {
	t.Helper()
	state := &struct {
		mu    sync.Mutex
		chats map[string]*model.Chat
		posts int
	}{chats: map[string]*model.Chat{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chats", func(w http.ResponseWriter, r *http.Request) {
		var req CreateChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		state.mu.Lock()
		id := "chat-" + string(rune('a'+len(state.chats)))
		chat := &model.Chat{
			ID:           id,
			Customer:     req.Customer,
			Status:       model.ChatStatusWaiting,
			Priority:     "medium",
			Subject:      req.Subject,
			Category:     req.Category,
			LastActivity: time.Now().UTC(),
			CreatedAt:    time.Now().UTC(),
		}
		state.chats[id] = chat
		state.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(chat)
	})
	mux.HandleFunc("GET /api/chats/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/chats/")
		state.mu.Lock()
		chat, ok := state.chats[id]
		state.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(chat)
	})
	mux.HandleFunc("POST /api/chats/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/chats/"), "/messages")
		var req PostMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		state.mu.Lock()
		state.posts++
		msg := model.ChatMessage{
			ID:          "msg-" + string(rune('0'+state.posts)),
			ChatID:      id,
			Content:     req.Content,
			MessageType: req.MessageType,
			CreatedAt:   time.Now().UTC(),
		}
		state.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(msg)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, state
}

func startedSession(t *testing.T, srv *httptest.Server, conn RoomConn, sessionID string) *Session {
	t.Helper()
	s := NewSession(NewClient(srv.URL), conn, &nopToaster{}, time.Minute)
	err := s.Start(context.Background(), model.Customer{
		Name: "Dana", Email: "dana@example.com", SessionID: sessionID,
	}, "Brake noise", "repair", "My brakes squeal")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return s
}

func TestStartRequiresName(t *testing.T) {
	srv, _ := fakeHub(t)
	s := NewSession(NewClient(srv.URL), &fakeConn{}, nil, 0)
	err := s.Start(context.Background(), model.Customer{SessionID: "s1"}, "x", "y", "")
	if err != ErrNameRequired {
		t.Fatalf("Start without name = %v, want ErrNameRequired", err)
	}
	if s.Chat() != nil {
		t.Fatalf("failed start must not keep local state")
	}
}

func TestStartCreatesAndJoins(t *testing.T) {
	srv, _ := fakeHub(t)
	conn := &fakeConn{}
	s := startedSession(t, srv, conn, "sess-1")

	chat := s.Chat()
	if chat == nil || chat.ID == "" {
		t.Fatalf("no chat after Start")
	}
	if chat.Status != model.ChatStatusWaiting {
		t.Fatalf("new chat status = %s, want waiting", chat.Status)
	}
	if len(conn.joined) != 1 || conn.joined[0] != chat.ID {
		t.Fatalf("joined rooms = %v", conn.joined)
	}
}

func TestStartSurvivesJoinFailure(t *testing.T) {
	srv, _ := fakeHub(t)
	conn := &fakeConn{joinErr: transport.ErrNotConnected}
	s := startedSession(t, srv, conn, "sess-1")
	if s.Chat() == nil {
		t.Fatalf("join failure must not fail Start; the room is re-joined on reconnect")
	}
}

func TestSendAppendsAndRelays(t *testing.T) {
	srv, state := fakeHub(t)
	conn := &fakeConn{}
	s := startedSession(t, srv, conn, "sess-1")

	if err := s.Send(context.Background(), "when can you look at it?", model.MessageTypeText); err != nil {
		t.Fatalf("Send: %v", err)
	}
	chat := s.Chat()
	if len(chat.Messages) != 1 || chat.Messages[0].Content != "when can you look at it?" {
		t.Fatalf("local messages = %+v", chat.Messages)
	}
	cmds := conn.commands()
	if len(cmds) != 1 || cmds[0].Type != transport.CommandSendMessage || cmds[0].SessionID != "sess-1" {
		t.Fatalf("relay commands = %+v", cmds)
	}
	state.mu.Lock()
	posts := state.posts
	state.mu.Unlock()
	if posts != 1 {
		t.Fatalf("hub saw %d posts, want 1", posts)
	}
}

func TestSendHTTPFailureKeepsLocalStateClean(t *testing.T) {
	srv, _ := fakeHub(t)
	conn := &fakeConn{}
	s := startedSession(t, srv, conn, "sess-1")
	srv.Close()

	err := s.Send(context.Background(), "lost", model.MessageTypeText)
	if err == nil {
		t.Fatalf("Send against dead hub must fail")
	}
	if got := len(s.Chat().Messages); got != 0 {
		t.Fatalf("failed send appended locally, len=%d", got)
	}
	if got := len(conn.commands()); got != 0 {
		t.Fatalf("failed send still relayed, %d commands", got)
	}
}

func TestSendRelayFailureIsNotFatal(t *testing.T) {
	srv, _ := fakeHub(t)
	conn := &fakeConn{relayErr: transport.ErrNotConnected}
	s := startedSession(t, srv, conn, "sess-1")

	if err := s.Send(context.Background(), "hello", model.MessageTypeText); err != nil {
		t.Fatalf("Send with dead relay = %v, message is persisted", err)
	}
	if got := len(s.Chat().Messages); got != 1 {
		t.Fatalf("persisted message not kept, len=%d", got)
	}
}

func TestSendOnClosedChat(t *testing.T) {
	srv, state := fakeHub(t)
	s := startedSession(t, srv, &fakeConn{}, "sess-1")

	chatID := s.Chat().ID
	state.mu.Lock()
	state.chats[chatID].Status = model.ChatStatusClosed
	state.mu.Unlock()
	s.HandleEvent(transport.Event{
		Type:   transport.EventStatusChange,
		Status: &transport.StatusPayload{ChatID: chatID, Status: model.ChatStatusClosed},
	})

	if err := s.Send(context.Background(), "too late", model.MessageTypeText); err != ErrChatClosed {
		t.Fatalf("Send on closed chat = %v, want ErrChatClosed", err)
	}
}

func TestSendWithoutChat(t *testing.T) {
	srv, _ := fakeHub(t)
	s := NewSession(NewClient(srv.URL), &fakeConn{}, nil, 0)
	if err := s.Send(context.Background(), "hi", model.MessageTypeText); err != ErrNoActiveChat {
		t.Fatalf("Send before Start = %v, want ErrNoActiveChat", err)
	}
}

func TestInboundMessageEcho(t *testing.T) {
	srv, _ := fakeHub(t)
	s := startedSession(t, srv, &fakeConn{}, "sess-1")
	chatID := s.Chat().ID

	// The hub relays our own message back tagged with our session id.
	s.HandleEvent(transport.Event{
		Type: transport.EventMessage,
		Message: &transport.MessagePayload{
			ChatID:    chatID,
			SessionID: "sess-1",
			Message:   model.ChatMessage{ID: "m1", ChatID: chatID, Content: "echo"},
		},
	})
	if got := len(s.Chat().Messages); got != 0 {
		t.Fatalf("own echo was appended, len=%d", got)
	}

	// An agent message carries a different origin and lands.
	s.HandleEvent(transport.Event{
		Type: transport.EventMessage,
		Message: &transport.MessagePayload{
			ChatID:  chatID,
			Message: model.ChatMessage{ID: "m2", ChatID: chatID, Content: "agent here"},
		},
	})
	msgs := s.Chat().Messages
	if len(msgs) != 1 || msgs[0].Content != "agent here" {
		t.Fatalf("agent message lost: %+v", msgs)
	}
}

func TestEventsForOtherChatsIgnored(t *testing.T) {
	srv, _ := fakeHub(t)
	s1 := startedSession(t, srv, &fakeConn{}, "sess-1")
	s2 := startedSession(t, srv, &fakeConn{}, "sess-2")

	ev := transport.Event{
		Type: transport.EventMessage,
		Message: &transport.MessagePayload{
			ChatID:  s1.Chat().ID,
			Message: model.ChatMessage{ID: "m1", Content: "for chat one"},
		},
	}
	// Both controllers share the connection and see every event.
	s1.HandleEvent(ev)
	s2.HandleEvent(ev)

	if got := len(s1.Chat().Messages); got != 1 {
		t.Fatalf("target session messages = %d, want 1", got)
	}
	if got := len(s2.Chat().Messages); got != 0 {
		t.Fatalf("other session absorbed a foreign event, messages = %d", got)
	}
}

func TestTypingAutoClear(t *testing.T) {
	srv, _ := fakeHub(t)
	s := NewSession(NewClient(srv.URL), &fakeConn{}, &nopToaster{}, 30*time.Millisecond)
	if err := s.Start(context.Background(), model.Customer{Name: "Dana", SessionID: "sess-1"}, "x", "y", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	chatID := s.Chat().ID

	s.HandleEvent(transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{ChatID: chatID, UserID: "agent-7"},
	})
	if !s.AgentTyping() {
		t.Fatalf("typing flag not set")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.AgentTyping() {
		if time.Now().After(deadline) {
			t.Fatalf("typing flag never cleared")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOwnTypingIgnored(t *testing.T) {
	srv, _ := fakeHub(t)
	s := startedSession(t, srv, &fakeConn{}, "sess-1")
	s.HandleEvent(transport.Event{
		Type:   transport.EventTyping,
		Typing: &transport.TypingPayload{ChatID: s.Chat().ID, UserID: "sess-1"},
	})
	if s.AgentTyping() {
		t.Fatalf("own typing event set the agent flag")
	}
}

func TestAssignmentRefetchesChat(t *testing.T) {
	srv, state := fakeHub(t)
	toaster := &nopToaster{}
	s := NewSession(NewClient(srv.URL), &fakeConn{}, toaster, time.Minute)
	if err := s.Start(context.Background(), model.Customer{Name: "Dana", SessionID: "sess-1"}, "x", "y", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	chatID := s.Chat().ID

	agent := model.Agent{ID: "agent-7", Name: "Sam"}
	state.mu.Lock()
	state.chats[chatID].AssignedTo = &agent
	state.chats[chatID].Status = model.ChatStatusActive
	state.mu.Unlock()

	s.HandleEvent(transport.Event{
		Type:       transport.EventAssignment,
		Assignment: &transport.AssignmentPayload{ChatID: chatID, AssignedTo: agent},
	})

	chat := s.Chat()
	if chat.AssignedTo == nil || chat.AssignedTo.ID != "agent-7" {
		t.Fatalf("assignment not reconciled: %+v", chat.AssignedTo)
	}
	if chat.Status != model.ChatStatusActive {
		t.Fatalf("status not reconciled: %s", chat.Status)
	}
	toaster.mu.Lock()
	defer toaster.mu.Unlock()
	if len(toaster.toasts) == 0 || toaster.toasts[len(toaster.toasts)-1].Title != "Chat assigned" {
		t.Fatalf("assignment toast missing: %+v", toaster.toasts)
	}
}

func TestRefetchFailureShowsToastKeepsState(t *testing.T) {
	srv, _ := fakeHub(t)
	toaster := &nopToaster{}
	s := NewSession(NewClient(srv.URL), &fakeConn{}, toaster, time.Minute)
	if err := s.Start(context.Background(), model.Customer{Name: "Dana", SessionID: "sess-1"}, "x", "y", ""); err != nil {
		t.Fatalf("Start: %v", err)
	}
	chatID := s.Chat().ID
	srv.Close()

	s.HandleEvent(transport.Event{
		Type:   transport.EventStatusChange,
		Status: &transport.StatusPayload{ChatID: chatID, Status: model.ChatStatusActive},
	})

	// The local record stays at its last known state.
	if got := s.Chat().Status; got != model.ChatStatusWaiting {
		t.Fatalf("status mutated despite failed refetch: %s", got)
	}
	toaster.mu.Lock()
	defer toaster.mu.Unlock()
	var sawError bool
	for _, to := range toaster.toasts {
		if to.Title == "Failed to load chat" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("no failure toast shown: %+v", toaster.toasts)
	}
}
