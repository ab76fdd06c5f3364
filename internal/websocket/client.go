package chatws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/saeid-a/bookingchat/internal/services"
	"golang.org/x/time/rate"
)

// Conn is the part of a websocket connection the gateway uses.
// *websocket.Conn from gofiber/contrib satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ChatService is what the gateway needs from the message store.
type ChatService interface {
	SendMessage(ctx context.Context, actorID int64, role string, conversationID int64, body string) (*services.ChatDelivery, error)
	MarkRead(ctx context.Context, actorID int64, role string, conversationID int64) (*services.ReadReceipt, error)
	AuthorizeParticipant(ctx context.Context, actorID, conversationID int64) error
}

// Authenticator verifies a bearer token and returns the subject.
type Authenticator func(token string) (userID int64, role string, err error)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Options struct {
	IdleTimeout   time.Duration
	AuthTimeout   time.Duration
	WriteTimeout  time.Duration
	SendBuffer    int
	RatePerSecond float64
	RateBurst     int
}

func (o Options) withDefaults() Options {
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 60 * time.Second
	}
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 10
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 20
	}
	return o
}

type Client struct {
	ID string

	hub     *Hub
	conn    Conn
	opts    Options
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	userID int64
	role   string
	send   chan []byte
	closed bool

	// guarded by hub.mu
	rooms map[int64]struct{}
}

func NewClient(hub *Hub, conn Conn, opts Options, logger *slog.Logger) *Client {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RateBurst),
		logger:  logger.With("connection_id", id),
		state:   StateConnecting,
		send:    make(chan []byte, opts.SendBuffer),
		rooms:   make(map[int64]struct{}),
	}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) UserID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// Authenticate binds the connection to a verified subject and registers it.
// It is used directly when the token was checked at upgrade time.
func (c *Client) Authenticate(userID int64, role string) {
	c.mu.Lock()
	if c.state == StateActive || c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.userID = userID
	c.role = role
	c.state = StateActive
	c.mu.Unlock()

	c.hub.Register(c)
	c.logger.Info("websocket authenticated", "user_id", userID, "role", role)

	c.sendEvent(EventAuthOK, AuthOKPayload{UserID: userID, Role: role, ConnectionID: c.ID})
}

// Serve runs the connection until it closes: the write pump in its own
// goroutine and the read loop on the caller's goroutine.
func (c *Client) Serve(ctx context.Context, chat ChatService, authenticate Authenticator) {
	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateAuthenticating
	}
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WritePump()
	}()

	c.ReadPump(ctx, chat, authenticate)
	<-done
}

func (c *Client) ReadPump(ctx context.Context, chat ChatService, authenticate Authenticator) {
	defer c.shutdown()

	if c.State() == StateActive {
		c.refreshDeadline()
	} else {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.AuthTimeout))
	}

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if c.State() == StateAuthenticating && isTimeout(err) {
				c.authFailed("authentication timeout")
			}
			return
		}
		c.refreshDeadline()

		if !c.limiter.Allow() {
			c.sendError("rate limit exceeded")
			continue
		}

		var event InboundEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			c.sendError("invalid event payload")
			continue
		}

		if !c.dispatch(ctx, chat, authenticate, event) {
			return
		}
	}
}

// WritePump is the only writer on the connection. It exits when the send
// queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.opts.IdleTimeout * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, chat ChatService, authenticate Authenticator, event InboundEvent) bool {
	c.mu.Lock()
	state, userID, role := c.state, c.userID, c.role
	c.mu.Unlock()

	if state != StateActive {
		switch event.Type {
		case EventAuthenticate:
			if authenticate == nil {
				c.authFailed("authentication unavailable")
				return false
			}
			subjectID, subjectRole, err := authenticate(event.Token)
			if err != nil {
				c.authFailed("invalid token")
				return false
			}
			c.Authenticate(subjectID, subjectRole)
			c.refreshDeadline()
			return true
		case EventPing:
			c.sendEvent(EventPong, nil)
			return true
		default:
			c.authFailed("authentication required")
			return false
		}
	}

	switch event.Type {
	case EventAuthenticate:
		c.sendError("already authenticated")
	case EventPing:
		c.sendEvent(EventPong, nil)
	case EventJoinConversation:
		if err := chat.AuthorizeParticipant(ctx, userID, event.ConversationID); err != nil {
			c.sendServiceError(err)
			return true
		}
		c.hub.Join(c, event.ConversationID)
		c.sendEvent(EventJoined, ConversationPayload{ConversationID: event.ConversationID})
	case EventLeaveConversation:
		c.hub.Leave(c, event.ConversationID)
		c.sendEvent(EventLeft, ConversationPayload{ConversationID: event.ConversationID})
	case EventSendMessage:
		if _, err := chat.SendMessage(ctx, userID, role, event.ConversationID, event.Body); err != nil {
			c.sendServiceError(err)
		}
	case EventTyping:
		if !c.hub.IsSubscribed(c, event.ConversationID) {
			c.sendError("join the conversation first")
			return true
		}
		c.hub.BroadcastTyping(c, event.ConversationID, event.IsTyping)
	case EventMarkRead:
		if _, err := chat.MarkRead(ctx, userID, role, event.ConversationID); err != nil {
			c.sendServiceError(err)
		}
	default:
		c.sendError("unsupported event type")
	}
	return true
}

// refreshDeadline restarts the idle window. Only inbound events count as
// activity; pongs to server pings do not, so a silent client is dropped after
// IdleTimeout even while its socket is healthy.
func (c *Client) refreshDeadline() {
	if c.State() != StateActive {
		return
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(c.opts.IdleTimeout))
}

func (c *Client) authFailed(reason string) {
	c.logger.Info("websocket authentication failed", "reason", reason)
	c.enqueue(encodeError(EventAuthError, reason))
}

func (c *Client) sendEvent(eventType string, payload any) {
	encoded, err := encodeEvent(eventType, payload)
	if err != nil {
		c.logger.Error("encode websocket event", "type", eventType, "error", err)
		return
	}
	if !c.enqueue(encoded) {
		c.hub.Unregister(c)
	}
}

func (c *Client) sendError(message string) {
	if !c.enqueue(encodeError(EventError, message)) {
		c.hub.Unregister(c)
	}
}

func (c *Client) sendServiceError(err error) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		c.sendError("not a participant of this conversation")
	case errors.Is(err, services.ErrNotFound):
		c.sendError("conversation not found")
	case errors.Is(err, services.ErrInvalidInput):
		c.sendError("invalid input")
	case errors.Is(err, services.ErrChatLocked):
		c.sendError("conversation is read-only")
	default:
		c.logger.Error("websocket event failed", "user_id", c.UserID(), "error", err)
		c.sendError("internal error")
	}
}

func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		c.closed = true
		c.state = StateClosed
		close(c.send)
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateClosed
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) shutdown() {
	c.hub.Unregister(c)
	c.logger.Debug("websocket closed", "user_id", c.UserID())
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
