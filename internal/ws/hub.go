// Package ws is the hub-side realtime endpoint: it tracks connected
// sessions, groups them into per-chat rooms and fans out chat events and
// server-originated notifications.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/transport"
)

// ChatStore is the slice of the chat repository the hub needs.
type ChatStore interface {
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	TouchActivity(ctx context.Context, chatID string, now time.Time) error
}

type Hub struct {
	mu       sync.RWMutex
	sessions map[string]map[*Client]struct{} // by session id
	rooms    map[string]map[*Client]struct{} // by chat id
	total    int
	maxConns int

	chatStore ChatStore

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(chatStore ChatStore, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		sessions:   make(map[string]map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		chatStore:  chatStore,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for _, clients := range h.sessions {
		for c := range clients {
			allClients = append(allClients, c)
		}
	}
	h.sessions = make(map[string]map[*Client]struct{})
	h.rooms = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting session=%s", h.maxConns, c.sessionID)
		c.Close()
		return
	}
	if _, ok := h.sessions[c.sessionID]; !ok {
		h.sessions[c.sessionID] = make(map[*Client]struct{})
	}
	h.sessions[c.sessionID][c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.sessions[c.sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.sessions, c.sessionID)
	}
	for chatID := range c.joined {
		if room, ok := h.rooms[chatID]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	h.mu.Unlock()

	// Network I/O outside the lock.
	c.Close()
}

// HandleCommand dispatches one decoded client command.
func (h *Hub) HandleCommand(ctx context.Context, c *Client, cmd transport.Command) {
	switch cmd.Type {
	case transport.CommandJoin:
		h.handleJoin(ctx, c, cmd)
	case transport.CommandSendMessage:
		h.handleSendMessage(ctx, c, cmd)
	case transport.CommandTyping:
		h.handleTyping(c, cmd)
	default:
		h.sendToClient(c, errorFrame("unknown command type"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, cmd transport.Command) {
	if cmd.ChatID == "" {
		h.sendToClient(c, errorFrame("chat_id required"))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := h.chatStore.GetByID(ctx, cmd.ChatID); err != nil {
		logger.Errorf("ws join chat=%s session=%s: %v", cmd.ChatID, c.sessionID, err)
		h.sendToClient(c, errorFrame("unknown chat"))
		return
	}

	h.mu.Lock()
	if _, ok := h.rooms[cmd.ChatID]; !ok {
		h.rooms[cmd.ChatID] = make(map[*Client]struct{})
	}
	h.rooms[cmd.ChatID][c] = struct{}{}
	c.joined[cmd.ChatID] = struct{}{}
	h.mu.Unlock()
}

// handleSendMessage relays an already-persisted message to the room. The
// origin session id rides along so receiving controllers can drop their
// own echo; delivery here includes every client in the room.
func (h *Hub) handleSendMessage(ctx context.Context, c *Client, cmd transport.Command) {
	defer logger.DeferLogDuration("ws.handleSendMessage", time.Now())()
	if cmd.ChatID == "" || cmd.Message == nil || (cmd.Message.Content == "" && cmd.Message.MessageType != model.MessageTypeSystem) {
		h.sendToClient(c, errorFrame("chat_id and message required"))
		return
	}
	if !h.isMember(c, cmd.ChatID) {
		h.sendToClient(c, errorFrame("not in room"))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.chatStore.TouchActivity(ctx, cmd.ChatID, time.Now().UTC()); err != nil {
		logger.Errorf("ws touch activity chat=%s: %v", cmd.ChatID, err)
	}

	out := Outgoing{Type: transport.EventMessage, Payload: transport.MessagePayload{
		ChatID:    cmd.ChatID,
		SessionID: cmd.SessionID,
		Message:   *cmd.Message,
	}}
	h.broadcastToRoom(cmd.ChatID, out, nil)
}

func (h *Hub) handleTyping(c *Client, cmd transport.Command) {
	if cmd.ChatID == "" {
		return
	}
	if !h.isMember(c, cmd.ChatID) {
		return
	}
	out := Outgoing{Type: transport.EventTyping, Payload: transport.TypingPayload{
		ChatID: cmd.ChatID,
		UserID: cmd.SessionID,
	}}
	h.broadcastToRoom(cmd.ChatID, out, c)
}

// NotifySession pushes a notification event to every connection of one
// session. Returns false when the session has no open connection, so the
// caller can fall back to Web Push.
func (h *Hub) NotifySession(sessionID string, in model.NotificationInput) bool {
	h.mu.RLock()
	clients, ok := h.sessions[sessionID]
	targets := make([]*Client, 0, len(clients))
	for c := range clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if !ok || len(targets) == 0 {
		return false
	}
	out := Outgoing{Type: transport.EventNotification, Payload: in}
	for _, c := range targets {
		h.sendToClient(c, out)
	}
	return true
}

// BroadcastAssignment announces the handling agent to the chat room.
func (h *Hub) BroadcastAssignment(chatID string, agent model.Agent) {
	h.broadcastToRoom(chatID, Outgoing{Type: transport.EventAssignment, Payload: transport.AssignmentPayload{
		ChatID:     chatID,
		AssignedTo: agent,
	}}, nil)
}

// BroadcastStatus announces a status transition to the chat room.
func (h *Hub) BroadcastStatus(chatID string, status model.ChatStatus) {
	h.broadcastToRoom(chatID, Outgoing{Type: transport.EventStatusChange, Payload: transport.StatusPayload{
		ChatID: chatID,
		Status: status,
	}}, nil)
}

func (h *Hub) isMember(c *Client, chatID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[chatID]
	if !ok {
		return false
	}
	_, in := room[c]
	return in
}

func (h *Hub) broadcastToRoom(chatID string, msg Outgoing, except *Client) {
	h.mu.RLock()
	room, ok := h.rooms[chatID]
	if !ok {
		h.mu.RUnlock()
		return
	}
	targets := make([]*Client, 0, len(room))
	for c := range room {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, msg)
	}
}

func (h *Hub) sendToClient(c *Client, msg Outgoing) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client session=%s", c.sessionID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
