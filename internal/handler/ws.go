package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/ws"
)

type WSHandler struct {
	hub            *ws.Hub
	allowedOrigins string
}

// NewWSHandler creates the websocket upgrade handler. allowedOrigins uses
// the CORS format (comma-separated or "*").
func NewWSHandler(hub *ws.Hub, allowedOrigins string) *WSHandler {
	return &WSHandler{hub: hub, allowedOrigins: strings.TrimSpace(allowedOrigins)}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.allowedOrigins == "*" || h.allowedOrigins == "" {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, o := range strings.Split(h.allowedOrigins, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	return false
}

// ServeWS upgrades the request. The session identifies itself with its
// client-generated session_id; there is no account to authenticate (the
// CRM's session handling lives outside this service).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return h.checkOrigin(r) },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Errorf("ws upgrade: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := ws.NewClient(h.hub, conn, sessionID)
	client.Start(ctx, cancel)
	h.hub.Register(client)
}
