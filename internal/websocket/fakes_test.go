package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/internal/services"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn feeds inbound frames from a channel and records text frames the
// gateway writes. It honours read deadlines so idle and auth timeouts fire.
type fakeConn struct {
	inbound chan []byte
	out     chan []byte

	mu           sync.Mutex
	readDeadline time.Time
	writeErr     error

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		out:     make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	deadline := c.readDeadline
	c.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case payload, ok := <-c.inbound:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, payload, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	case <-timeout:
		return 0, nil, timeoutError{}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}

	c.mu.Lock()
	writeErr := c.writeErr
	c.mu.Unlock()
	if writeErr != nil {
		return writeErr
	}

	if messageType == websocket.TextMessage {
		c.out <- append([]byte(nil), data...)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) sendEvent(t *testing.T, event InboundEvent) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal inbound event: %v", err)
	}
	c.inbound <- payload
}

type receivedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
}

func (c *fakeConn) nextEvent(t *testing.T) receivedEvent {
	t.Helper()
	select {
	case payload := <-c.out:
		var event receivedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatalf("decode outbound event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound event")
		return receivedEvent{}
	}
}

func (c *fakeConn) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case payload := <-c.out:
		t.Fatalf("unexpected outbound event: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func drainQueued(client *Client) []receivedEvent {
	events := make([]receivedEvent, 0)
	for {
		select {
		case payload, ok := <-client.send:
			if !ok {
				return events
			}
			var event receivedEvent
			_ = json.Unmarshal(payload, &event)
			events = append(events, event)
		default:
			return events
		}
	}
}

// stubChat lets client 7 and provider 9 talk in conversation 1 and pushes
// appended messages through the hub the way the chat service does.
type stubChat struct {
	hub       *Hub
	nextID    atomic.Int64
	sendErr   error
	marked    atomic.Int64
	markedFor atomic.Int64
}

func testConversation() *models.Conversation {
	return &models.Conversation{
		ID: 1,
		Participants: []models.Participant{
			{ConversationID: 1, UserID: 7, UserType: models.UserTypeClient},
			{ConversationID: 1, UserID: 9, UserType: models.UserTypeProvider},
		},
	}
}

func (s *stubChat) AuthorizeParticipant(_ context.Context, actorID, conversationID int64) error {
	if conversationID != 1 {
		return services.ErrNotFound
	}
	if actorID != 7 && actorID != 9 {
		return services.ErrForbidden
	}
	return nil
}

func (s *stubChat) SendMessage(ctx context.Context, actorID int64, role string, conversationID int64, body string) (*services.ChatDelivery, error) {
	if err := s.AuthorizeParticipant(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	if body == "" {
		return nil, services.ErrInvalidInput
	}

	conversation := testConversation()
	message := &models.ChatMessage{
		ID:             s.nextID.Add(1),
		ConversationID: conversationID,
		SenderID:       actorID,
		SenderType:     role,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	delivered := s.hub.PushMessage(conversation, message)
	return &services.ChatDelivery{Conversation: conversation, Message: message, Delivered: delivered}, nil
}

func (s *stubChat) MarkRead(ctx context.Context, actorID int64, _ string, conversationID int64) (*services.ReadReceipt, error) {
	if err := s.AuthorizeParticipant(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	s.marked.Add(1)
	s.markedFor.Store(actorID)
	s.hub.PushConversationRead(actorID, conversationID, 1)
	return &services.ReadReceipt{ConversationID: conversationID, MessagesMarked: 1}, nil
}

func stubAuthenticator(token string) (int64, string, error) {
	switch token {
	case "client-7":
		return 7, models.UserTypeClient, nil
	case "provider-9":
		return 9, models.UserTypeProvider, nil
	default:
		return 0, "", errors.New("invalid token")
	}
}
