package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/transport"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufSize    = 256
)

// bufPool pools bytes.Buffer for JSON encoding in the hot path (writePump).
var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// Client represents a single connected session socket.
// Lifecycle: NewClient -> Start(ctx, cancel) -> [readPump, writePump] -> Close -> Wait.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan Outgoing
	sessionID string

	// joined is the set of chat rooms this socket is in; owned by the hub
	// and only touched under its mutex.
	joined map[string]struct{}

	// done is used as a non-blocking guard in sendToClient.
	done chan struct{}
	// cancel cancels the context passed to Start, triggering pump shutdown.
	cancel context.CancelFunc
	once   sync.Once
	wg     sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID string) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan Outgoing, sendBufSize),
		sessionID: sessionID,
		joined:    make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the pump goroutines with controlled lifecycle.
// ctx controls pump lifetime; cancel is stored for Close().
func (c *Client) Start(ctx context.Context, cancel context.CancelFunc) {
	c.cancel = cancel
	c.wg.Add(2)
	go c.writePump(ctx)
	go c.readPump(ctx)
}

// Wait blocks until both pump goroutines have exited.
func (c *Client) Wait() {
	c.wg.Wait()
}

// Close signals the client to stop. Safe to call multiple times from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		close(c.done)
		// Force both pumps to unblock (ReadMessage / WriteMessage will error).
		c.conn.Close()
	})
}

// readPump reads commands from the socket.
// Exits on read error (triggered by conn.Close from Close() or writePump exit).
func (c *Client) readPump(ctx context.Context) {
	defer c.wg.Done()
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logger.Errorf("ws set read deadline session=%s: %v", c.sessionID, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Errorf("ws read error session=%s: %v", c.sessionID, err)
			}
			return
		}

		var cmd transport.Command
		if err := json.Unmarshal(raw, &cmd); err != nil {
			logger.Errorf("ws unmarshal error session=%s: %v", c.sessionID, err)
			continue
		}

		c.hub.HandleCommand(ctx, c, cmd)
	}
}

// writePump writes frames to the socket.
// Exits on ctx cancellation, write error, or connection close.
func (c *Client) writePump(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			if err := c.conn.WriteMessage(websocket.CloseMessage, nil); err != nil {
				logger.Errorf("ws close message session=%s: %v", c.sessionID, err)
			}
			return
		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline session=%s: %v", c.sessionID, err)
				return
			}
			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()
			enc := json.NewEncoder(buf)
			if err := enc.Encode(msg); err != nil {
				bufPool.Put(buf)
				logger.Errorf("ws marshal error session=%s: %v", c.sessionID, err)
				continue
			}
			data := buf.Bytes()
			// json.Encoder appends '\n'; trim it for WebSocket text messages.
			if len(data) > 0 && data[len(data)-1] == '\n' {
				data = data[:len(data)-1]
			}
			writeErr := c.conn.WriteMessage(websocket.TextMessage, data)
			bufPool.Put(buf)
			if writeErr != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logger.Errorf("ws set write deadline session=%s: %v", c.sessionID, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
