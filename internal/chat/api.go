package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/garagedesk/internal/model"
)

// Client calls the hub's chat endpoints: create a chat, fetch it back,
// post a message. Request/response only; realtime events arrive over the
// transport connection, not here.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CreateChatRequest is the chat-creation body.
type CreateChatRequest struct {
	Customer       model.Customer `json:"customer"`
	Subject        string         `json:"subject"`
	Category       string         `json:"category"`
	InitialMessage string         `json:"initial_message"`
}

// PostMessageRequest is the message-post body.
type PostMessageRequest struct {
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"message_type"`
}

// CreateChat creates a chat (with its initial message) and returns the full
// record including the server-assigned id.
func (c *Client) CreateChat(ctx context.Context, req CreateChatRequest) (*model.Chat, error) {
	var chat model.Chat
	if err := c.do(ctx, http.MethodPost, "/api/chats", req, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetChat fetches the full chat record; used to reconcile local state after
// assignment and status-change events.
func (c *Client) GetChat(ctx context.Context, chatID string) (*model.Chat, error) {
	var chat model.Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+chatID, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// PostMessage persists one outbound message and returns the created record.
func (c *Client) PostMessage(ctx context.Context, chatID string, req PostMessageRequest) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/api/chats/"+chatID+"/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("chat api %s %s: encode: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("chat api %s %s: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat api %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("chat api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("chat api %s %s: decode: %w", method, path, err)
		}
	}
	return nil
}
