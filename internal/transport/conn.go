// Package transport maintains the single long-lived websocket connection a
// garagedesk session holds to the hub endpoint. Inbound frames are decoded
// once at the boundary and handed to typed handlers; the connection
// recovers from any close with a fixed-delay, unbounded reconnect loop.
package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

const writeWait = 10 * time.Second

// DefaultReconnectDelay is the fixed pause between a close and the next
// connection attempt. Constant backoff, no retry cap: the session keeps
// trying for as long as it lives. Tunable via config.
const DefaultReconnectDelay = 5 * time.Second

var ErrNotConnected = errors.New("transport: not connected")

// State is the explicit connection state machine:
// Disconnected -> Connecting -> Connected -> Disconnected.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handlers receive decoded inbound events. Notification events go to the
// notification hub; everything chat-scoped goes to Chat. Either may be nil.
type Handlers struct {
	Notification func(model.NotificationInput)
	Chat         func(Event)
}

type Conn struct {
	url            string
	reconnectDelay time.Duration
	handlers       Handlers

	mu     sync.Mutex
	ws     *websocket.Conn
	joined map[string]struct{}

	state atomic.Int32
}

// New prepares a connection to the hub ws endpoint (the session id travels
// in the url query). Run must be called to actually connect.
func New(url string, reconnectDelay time.Duration, h Handlers) *Conn {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Conn{
		url:            url,
		reconnectDelay: reconnectDelay,
		handlers:       h,
		joined:         make(map[string]struct{}),
	}
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Run opens the connection and blocks, reconnecting after every close
// until ctx is cancelled. Each close schedules exactly one retry after the
// fixed delay, then the full open sequence runs again (including re-joining
// every room the session had joined).
func (c *Conn) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		c.setState(StateConnecting)
		ws, resp, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			logger.Errorf("transport: dial %s: %v", c.url, err)
			c.setState(StateDisconnected)
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		c.ws = ws
		rooms := make([]string, 0, len(c.joined))
		for id := range c.joined {
			rooms = append(rooms, id)
		}
		c.mu.Unlock()
		c.setState(StateConnected)
		logger.Infof("transport: connected to %s", c.url)

		for _, id := range rooms {
			if err := c.writeCommand(Command{Type: CommandJoin, ChatID: id}); err != nil {
				logger.Errorf("transport: rejoin chat %s: %v", id, err)
			}
		}

		c.readLoop(ws)

		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		c.setState(StateDisconnected)
		if !c.waitReconnect(ctx) {
			return
		}
	}
}

func (c *Conn) waitReconnect(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.reconnectDelay):
		return true
	}
}

// readLoop consumes frames until the connection dies. A frame that fails to
// decode is dropped with a warning; decode trouble must never take the
// session down.
func (c *Conn) readLoop(ws *websocket.Conn) {
	defer ws.Close()
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("transport: read: %v", err)
			}
			return
		}
		ev, err := ParseEvent(raw)
		if err != nil {
			logger.Errorf("transport: dropping frame: %v", err)
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Conn) dispatch(ev Event) {
	switch ev.Type {
	case EventNotification:
		if c.handlers.Notification != nil && ev.Notification != nil {
			c.handlers.Notification(*ev.Notification)
		}
	case EventError:
		logger.Errorf("transport: server rejected command")
	default:
		if c.handlers.Chat != nil {
			c.handlers.Chat(ev)
		}
	}
}

// Join subscribes the session to a chat room. The room is remembered so
// reconnects re-join it; if the connection is currently down the join is
// deferred to the next open sequence.
func (c *Conn) Join(chatID string) error {
	c.mu.Lock()
	c.joined[chatID] = struct{}{}
	c.mu.Unlock()
	return c.writeCommand(Command{Type: CommandJoin, ChatID: chatID})
}

// SendMessage relays an already-persisted message to the other room
// participants, tagged with the origin session id. A failed send is not
// retried here; the caller decides whether to re-send.
func (c *Conn) SendMessage(chatID string, msg model.ChatMessage, sessionID string) error {
	return c.writeCommand(Command{
		Type:      CommandSendMessage,
		ChatID:    chatID,
		SessionID: sessionID,
		Message:   &msg,
	})
}

// SendTyping tells the room that userID is composing a message.
func (c *Conn) SendTyping(chatID, userID string) error {
	return c.writeCommand(Command{Type: CommandTyping, ChatID: chatID, SessionID: userID})
}

func (c *Conn) writeCommand(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(cmd)
}

// Close tears the current socket down. Cancel the Run context first or the
// loop will treat this as an ordinary close and reconnect.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}
