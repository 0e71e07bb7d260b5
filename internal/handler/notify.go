package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

// SessionNotifier pushes a notification event to a connected session;
// *ws.Hub implements it.
type SessionNotifier interface {
	NotifySession(sessionID string, in model.NotificationInput) bool
}

// OfflineNotifier is the Web Push fallback for sessions with no open
// socket; *push.Service implements it.
type OfflineNotifier interface {
	Notify(ctx context.Context, sessionID string, in model.NotificationInput)
}

type NotifyHandler struct {
	hub     SessionNotifier
	offline OfflineNotifier
}

// NewNotifyHandler builds the handler. offline may be nil when Web Push is
// not configured.
func NewNotifyHandler(hub SessionNotifier, offline OfflineNotifier) *NotifyHandler {
	return &NotifyHandler{hub: hub, offline: offline}
}

type notifyRequest struct {
	SessionID    string                  `json:"session_id"`
	Notification model.NotificationInput `json:"notification"`
}

type notifyResponse struct {
	Delivered bool `json:"delivered"`
}

// Notify pushes a server-originated notification to one session: over the
// socket when connected, via Web Push otherwise. The CRM backend calls
// this when an approval request, follow-up or reminder fires.
func (h *NotifyHandler) Notify(w http.ResponseWriter, r *http.Request) {
	defer logger.DeferLogDuration("notify.Notify", time.Now())()
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if strings.TrimSpace(req.Notification.Title) == "" {
		writeError(w, http.StatusBadRequest, "notification title required")
		return
	}

	delivered := h.hub.NotifySession(req.SessionID, req.Notification)
	if !delivered && h.offline != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.offline.Notify(ctx, req.SessionID, req.Notification)
	}

	writeJSON(w, http.StatusAccepted, notifyResponse{Delivered: delivered})
}
