package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrAuthRejected is returned by Dial when the gateway answers authenticate
// with auth_error.
var ErrAuthRejected = errors.New("websocket authentication rejected")

// Stream is an authenticated gateway connection. Writes are serialized; Next
// must be called from a single goroutine.
type Stream struct {
	conn         *websocket.Conn
	ConnectionID string

	writeMu   sync.Mutex
	closeOnce sync.Once
}

type outboundFrame struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Body           string `json:"body,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// Dial opens the push channel at baseURL (http or ws scheme) and
// authenticates with an authenticate event.
func Dial(ctx context.Context, baseURL, token string) (*Stream, error) {
	endpoint := strings.TrimRight(baseURL, "/")
	endpoint = strings.Replace(endpoint, "http://", "ws://", 1)
	endpoint = strings.Replace(endpoint, "https://", "wss://", 1)

	u, err := url.Parse(endpoint + "/api/v1/ws")
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}

	stream := &Stream{conn: conn}
	if err := stream.write(outboundFrame{Type: "authenticate", Token: token}); err != nil {
		stream.Close()
		return nil, fmt.Errorf("send authenticate: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	var reply Event
	if err := conn.ReadJSON(&reply); err != nil {
		stream.Close()
		return nil, fmt.Errorf("read auth reply: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch reply.Type {
	case "auth_ok":
		var payload struct {
			ConnectionID string `json:"connectionId"`
		}
		_ = json.Unmarshal(reply.Payload, &payload)
		stream.ConnectionID = payload.ConnectionID
		return stream, nil
	case "auth_error":
		stream.Close()
		return nil, fmt.Errorf("%w: %s", ErrAuthRejected, reply.Error)
	default:
		stream.Close()
		return nil, fmt.Errorf("expected auth_ok, got %s", reply.Type)
	}
}

func (s *Stream) Join(conversationID int64) error {
	return s.write(outboundFrame{Type: "join_conversation", ConversationID: conversationID})
}

func (s *Stream) Leave(conversationID int64) error {
	return s.write(outboundFrame{Type: "leave_conversation", ConversationID: conversationID})
}

func (s *Stream) Send(conversationID int64, body string) error {
	return s.write(outboundFrame{Type: "send_message", ConversationID: conversationID, Body: body})
}

func (s *Stream) Typing(conversationID int64, isTyping bool) error {
	return s.write(outboundFrame{Type: "typing", ConversationID: conversationID, IsTyping: isTyping})
}

func (s *Stream) MarkRead(conversationID int64) error {
	return s.write(outboundFrame{Type: "mark_read", ConversationID: conversationID})
}

func (s *Stream) Ping() error {
	return s.write(outboundFrame{Type: "ping"})
}

// Next blocks for the next event. It returns ctx.Err() once ctx is done.
func (s *Stream) Next(ctx context.Context) (Event, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-done:
		}
	}()

	var event Event
	if err := s.conn.ReadJSON(&event); err != nil {
		if ctx.Err() != nil {
			return Event{}, ctx.Err()
		}
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	return event, nil
}

// Listen calls onEvent for every event until ctx is done, the connection
// closes, or onEvent returns an error.
func (s *Stream) Listen(ctx context.Context, onEvent func(Event) error) error {
	for {
		event, err := s.Next(ctx)
		if err != nil {
			return err
		}
		if err := onEvent(event); err != nil {
			return err
		}
	}
}

func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = s.conn.Close()
	})
}

func (s *Stream) write(frame outboundFrame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(frame)
}
