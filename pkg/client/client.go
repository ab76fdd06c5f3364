// Package client is a Go SDK for the booking chat service: the pull API over
// HTTP, the push stream over websocket, and a Reconciler that keeps a local
// view consistent with both.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response. Message is the server's "error" field.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error: %d - %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client calls the HTTP API on behalf of one user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL (e.g. http://localhost:8080) that sends
// token as a bearer credential.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	endpoint := c.baseURL + "/api/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &envelope)
		if envelope.Error == "" {
			envelope.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Error}
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (c *Client) ConversationForBooking(ctx context.Context, bookingID int64) (*Conversation, error) {
	var out struct {
		Conversation *Conversation `json:"conversation"`
	}
	if err := c.do(ctx, http.MethodPost, "/conversations/for-booking/"+strconv.FormatInt(bookingID, 10), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversation, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	var out struct {
		Conversations []ConversationSummary `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) ChatUnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/conversations/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

// ListMessages returns one page in ascending order. An empty cursor with a
// zero limit returns the whole history.
func (c *Client) ListMessages(ctx context.Context, conversationID int64, cursor string, limit int) (*MessagePage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var page MessagePage
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID)+"/messages", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID int64, body string) (*Message, error) {
	var out struct {
		Message *Message `json:"message"`
	}
	request := map[string]string{"body": body}
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID)+"/messages", nil, request, &out); err != nil {
		return nil, err
	}
	return out.Message, nil
}

func (c *Client) MarkConversationRead(ctx context.Context, conversationID int64) (*ReadReceipt, error) {
	var receipt ReadReceipt
	if err := c.do(ctx, http.MethodPut, conversationPath(conversationID)+"/messages/read", nil, nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID int64) error {
	return c.do(ctx, http.MethodDelete, conversationPath(conversationID), nil, nil, nil)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (c *Client) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	return c.listNotifications(ctx, "/notifications", limit)
}

func (c *Client) ListSavedNotifications(ctx context.Context, limit int) ([]Notification, error) {
	return c.listNotifications(ctx, "/notifications/saved", limit)
}

func (c *Client) listNotifications(ctx context.Context, path string, limit int) ([]Notification, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) NotificationUnreadCount(ctx context.Context) (int, error) {
	var out struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) NotificationSavedCount(ctx context.Context) (int, error) {
	var out struct {
		SavedCount int `json:"saved_count"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications/saved-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.SavedCount, nil
}

type notificationRef struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationType string, id int64) error {
	return c.do(ctx, http.MethodPost, "/notifications/read", nil, notificationRef{Type: notificationType, ID: id}, nil)
}

func (c *Client) MarkNotificationUnread(ctx context.Context, notificationType string, id int64) error {
	return c.do(ctx, http.MethodPost, "/notifications/unread", nil, notificationRef{Type: notificationType, ID: id}, nil)
}

func (c *Client) SaveNotification(ctx context.Context, notificationType string, id int64) error {
	return c.do(ctx, http.MethodPost, "/notifications/save", nil, notificationRef{Type: notificationType, ID: id}, nil)
}

func (c *Client) UnsaveNotification(ctx context.Context, notificationType string, id int64) error {
	return c.do(ctx, http.MethodDelete, "/notifications/save", nil, notificationRef{Type: notificationType, ID: id}, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, notificationType string, id int64) error {
	path := "/notifications/" + url.PathEscape(notificationType) + "/" + strconv.FormatInt(id, 10)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) NotificationStatuses(ctx context.Context, notificationType string, ids []int64) ([]NotificationStatus, error) {
	request := struct {
		Type string  `json:"type"`
		IDs  []int64 `json:"ids"`
	}{Type: notificationType, IDs: ids}

	var out struct {
		Statuses []NotificationStatus `json:"statuses"`
	}
	if err := c.do(ctx, http.MethodPost, "/notifications/status", nil, request, &out); err != nil {
		return nil, err
	}
	return out.Statuses, nil
}

func conversationPath(id int64) string {
	return "/conversations/" + strconv.FormatInt(id, 10)
}
