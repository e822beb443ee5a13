// Package telegram is the chat transport: a small Telegram Bot API client
// over net/http plus a Gateway that turns private-chat updates into
// domain.IncomingMessage values, either by long polling or via webhook.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// Update is the subset of a Bot API update the gateway understands.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message is an inbound Bot API message.
type Message struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	From      *User  `json:"from,omitempty"`
	Text      string `json:"text,omitempty"`
	Caption   string `json:"caption,omitempty"`
}

// Chat identifies a conversation. Type is private, group, supergroup or channel.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

type getUpdatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description,omitempty"`
}

type getMeResponse struct {
	OK          bool   `json:"ok"`
	Result      User   `json:"result"`
	Description string `json:"description,omitempty"`
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type okResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// APIError is a Bot API failure: a non-2xx status or ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: http %d: %s", e.Method, e.StatusCode, e.Description)
}

// Client calls the Bot API. Sends are serialized.
type Client struct {
	http    *http.Client
	baseURL string
	token   string

	sendMu sync.Mutex
}

// NewClient returns a Client. A nil httpClient gets a 60s timeout client.
func NewClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: bot token must not be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{http: httpClient, baseURL: baseURL, token: token}, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) do(req *http.Request, method string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		// The request URL carries the token; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram %s: %w", method, uerr.Err)
		}
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ok okResponse
		desc := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &ok) == nil && ok.Description != "" {
			desc = ok.Description
		}
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: desc}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	return nil
}

// GetMe returns the bot's own account.
func (c *Client) GetMe(ctx context.Context) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.methodURL("getMe"), nil)
	if err != nil {
		return nil, err
	}
	var out getMeResponse
	if err := c.do(req, "getMe", &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, &APIError{Method: "getMe", StatusCode: http.StatusOK, Description: out.Description}
	}
	return &out.Result, nil
}

// GetUpdates long-polls for updates starting at offset and returns the
// offset to use next (one past the highest update id seen).
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	endpoint := fmt.Sprintf("%s?timeout=%d", c.methodURL("getUpdates"), secs)
	if offset > 0 {
		endpoint += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(secs)*time.Second+10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, offset, err
	}
	var out getUpdatesResponse
	if err := c.do(req, "getUpdates", &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, &APIError{Method: "getUpdates", StatusCode: http.StatusOK, Description: out.Description}
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// Send posts a plain-text message to chatID. Concurrent callers are
// serialized so replies leave in the order Send was entered.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	var out okResponse
	if err := c.do(req, "sendMessage", &out); err != nil {
		return err
	}
	if !out.OK {
		return &APIError{Method: "sendMessage", StatusCode: http.StatusOK, Description: out.Description}
	}
	return nil
}
