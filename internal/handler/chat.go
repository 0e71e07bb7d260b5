package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
	"github.com/garagedesk/internal/repository"

	"github.com/go-chi/chi/v5"
)

// ChatStore and MessageStore are the repository slices the handlers use;
// *repository.ChatRepository / *repository.MessageRepository implement them.
type ChatStore interface {
	Create(ctx context.Context, c *model.Chat) error
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	Assign(ctx context.Context, chatID string, agent model.Agent, now time.Time) error
	UpdateStatus(ctx context.Context, chatID string, status model.ChatStatus, now time.Time) error
	TouchActivity(ctx context.Context, chatID string, now time.Time) error
}

type MessageStore interface {
	Create(ctx context.Context, m *model.ChatMessage) error
	ListByChat(ctx context.Context, chatID string, limit int) ([]model.ChatMessage, error)
	MarkRead(ctx context.Context, chatID string) error
}

// RoomBroadcaster pushes room-scoped events to connected sessions;
// *ws.Hub implements it.
type RoomBroadcaster interface {
	BroadcastAssignment(chatID string, agent model.Agent)
	BroadcastStatus(chatID string, status model.ChatStatus)
}

type ChatHandler struct {
	chats    ChatStore
	messages MessageStore
	rooms    RoomBroadcaster
}

func NewChatHandler(chats ChatStore, messages MessageStore, rooms RoomBroadcaster) *ChatHandler {
	return &ChatHandler{chats: chats, messages: messages, rooms: rooms}
}

type createChatRequest struct {
	Customer       model.Customer `json:"customer"`
	Subject        string         `json:"subject"`
	Category       string         `json:"category"`
	Priority       string         `json:"priority"`
	InitialMessage string         `json:"initial_message"`
}

// CreateChat opens a conversation. The initial message is recorded as a
// system-style entry so the transcript starts with context even before the
// first agent reply.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.CreateChat", time.Now())()
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	if req.Customer.Name == "" {
		writeError(w, http.StatusBadRequest, "customer name required")
		return
	}
	if strings.TrimSpace(req.Customer.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if req.Priority == "" {
		req.Priority = "medium"
	}
	if req.Category == "" {
		req.Category = "general"
	}

	now := time.Now().UTC()
	chat := &model.Chat{
		ID:           uuid.New().String(),
		Customer:     req.Customer,
		Status:       model.ChatStatusWaiting,
		Priority:     req.Priority,
		Subject:      req.Subject,
		Category:     req.Category,
		LastActivity: now,
		CreatedAt:    now,
	}
	if err := h.chats.Create(r.Context(), chat); err != nil {
		logger.Errorf("create chat: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}

	content := strings.TrimSpace(req.InitialMessage)
	if content == "" {
		content = "Chat started"
	}
	msg := &model.ChatMessage{
		ID:          uuid.New().String(),
		ChatID:      chat.ID,
		Sender:      model.Sender{Name: req.Customer.Name, Email: req.Customer.Email},
		Content:     content,
		MessageType: model.MessageTypeSystem,
		CreatedAt:   now,
	}
	if err := h.messages.Create(r.Context(), msg); err != nil {
		logger.Errorf("create chat initial message: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	chat.Messages = []model.ChatMessage{*msg}

	writeJSON(w, http.StatusCreated, chat)
}

// GetChat returns the full record including messages, oldest first.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.GetChat", time.Now())()
	chatID := chi.URLParam(r, "id")
	chat, err := h.chats.GetByID(r.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("get chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	messages, err := h.messages.ListByChat(r.Context(), chatID, queryInt(r, "limit", 200))
	if err != nil {
		logger.Errorf("get chat messages %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	chat.Messages = messages
	writeJSON(w, http.StatusOK, chat)
}

type postMessageRequest struct {
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"message_type"`
	Sender      *model.Sender     `json:"sender,omitempty"`
}

// PostMessage persists one message and returns it. The realtime relay to
// other participants is the sender's job over the ws connection, tagged
// with its session id; posting here alone reaches nobody live.
func (h *ChatHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.PostMessage", time.Now())()
	chatID := chi.URLParam(r, "id")
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content required")
		return
	}
	if req.MessageType == "" {
		req.MessageType = model.MessageTypeText
	}

	chat, err := h.chats.GetByID(r.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("post message load chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if chat.Status.Terminal() {
		writeError(w, http.StatusConflict, "chat is closed")
		return
	}

	sender := model.Sender{Name: chat.Customer.Name, Email: chat.Customer.Email}
	if req.Sender != nil && strings.TrimSpace(req.Sender.Name) != "" {
		sender = *req.Sender
	}
	now := time.Now().UTC()
	msg := &model.ChatMessage{
		ID:          uuid.New().String(),
		ChatID:      chatID,
		Sender:      sender,
		Content:     req.Content,
		MessageType: req.MessageType,
		CreatedAt:   now,
	}
	if err := h.messages.Create(r.Context(), msg); err != nil {
		logger.Errorf("post message %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	if err := h.chats.TouchActivity(r.Context(), chatID, now); err != nil {
		logger.Errorf("post message touch activity %s: %v", chatID, err)
	}

	writeJSON(w, http.StatusCreated, msg)
}

type assignRequest struct {
	Agent model.Agent `json:"agent"`
}

// Assign records the handling agent and announces it to the room. A chat
// still waiting moves to active as part of assignment.
func (h *ChatHandler) Assign(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.Assign", time.Now())()
	chatID := chi.URLParam(r, "id")
	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Agent.ID == "" || strings.TrimSpace(req.Agent.Name) == "" {
		writeError(w, http.StatusBadRequest, "agent id and name required")
		return
	}

	chat, err := h.chats.GetByID(r.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("assign load chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to assign")
		return
	}

	now := time.Now().UTC()
	if err := h.chats.Assign(r.Context(), chatID, req.Agent, now); err != nil {
		logger.Errorf("assign chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to assign")
		return
	}
	h.rooms.BroadcastAssignment(chatID, req.Agent)

	if chat.Status == model.ChatStatusWaiting {
		if err := h.chats.UpdateStatus(r.Context(), chatID, model.ChatStatusActive, now); err != nil {
			logger.Errorf("assign activate chat %s: %v", chatID, err)
		} else {
			h.rooms.BroadcastStatus(chatID, model.ChatStatusActive)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status model.ChatStatus `json:"status"`
}

// UpdateStatus applies a forward-only status transition and announces it.
func (h *ChatHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("chat.UpdateStatus", time.Now())()
	chatID := chi.URLParam(r, "id")
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	chat, err := h.chats.GetByID(r.Context(), chatID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err != nil {
		logger.Errorf("status load chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	if !chat.Status.CanTransition(req.Status) {
		writeError(w, http.StatusConflict, "status can only move forward")
		return
	}

	if err := h.chats.UpdateStatus(r.Context(), chatID, req.Status, time.Now().UTC()); err != nil {
		logger.Errorf("update status chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	h.rooms.BroadcastStatus(chatID, req.Status)

	w.WriteHeader(http.StatusNoContent)
}

// MarkRead flags the chat's messages as read (agent opened the transcript).
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if err := h.messages.MarkRead(r.Context(), chatID); err != nil {
		logger.Errorf("mark read chat %s: %v", chatID, err)
		writeError(w, http.StatusInternalServerError, "failed to mark read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
