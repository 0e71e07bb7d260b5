package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/push"
)

type PushHandler struct {
	svc            *push.Service
	vapidPublicKey string
}

func NewPushHandler(svc *push.Service, vapidPublicKey string) *PushHandler {
	return &PushHandler{svc: svc, vapidPublicKey: vapidPublicKey}
}

// VAPIDPublic hands the public key to the browser for its subscribe call.
func (h *PushHandler) VAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(h.vapidPublicKey))
}

type subscribeRequest struct {
	SessionID    string            `json:"session_id"`
	Subscription push.Subscription `json:"subscription"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	if err := h.svc.Subscribe(r.Context(), req.SessionID, req.Subscription); err != nil {
		logger.Errorf("push subscribe: %v", err)
		writeError(w, http.StatusBadRequest, "failed to save subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Endpoint  string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "session_id and endpoint required")
		return
	}
	if err := h.svc.Unsubscribe(r.Context(), req.SessionID, req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
