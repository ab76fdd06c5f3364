package chatws

import (
	"encoding/json"
	"time"

	"github.com/saeid-a/bookingchat/internal/models"
)

// Inbound event types.
const (
	EventAuthenticate      = "authenticate"
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventMarkRead          = "mark_read"
	EventPing              = "ping"
)

// Outbound event types.
const (
	EventAuthOK           = "auth_ok"
	EventAuthError        = "auth_error"
	EventJoined           = "joined"
	EventLeft             = "left"
	EventNewMessage       = "new_message"
	EventNotification     = "notification"
	EventConversationRead = "conversation_read"
	EventError            = "error"
	EventPong             = "pong"
)

type InboundEvent struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	ConversationID int64  `json:"conversationId,omitempty"`
	Body           string `json:"body,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

type OutboundEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

type AuthOKPayload struct {
	UserID       int64  `json:"userId"`
	Role         string `json:"role"`
	ConnectionID string `json:"connectionId"`
}

type ConversationPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type NewMessagePayload struct {
	ConversationID int64               `json:"conversationId"`
	Message        *models.ChatMessage `json:"message"`
}

type NotificationPayload struct {
	NotificationID int64                   `json:"notificationId"`
	Type           models.NotificationType `json:"type"`
	Title          string                  `json:"title"`
	Message        string                  `json:"message"`
	CreatedAt      time.Time               `json:"createdAt"`
	BookingID      *int64                  `json:"bookingId,omitempty"`
	ConversationID *int64                  `json:"conversationId,omitempty"`
}

type ConversationReadPayload struct {
	ConversationID int64 `json:"conversationId"`
	ReaderID       int64 `json:"readerId"`
	Marked         int64 `json:"marked"`
}

type TypingPayload struct {
	ConversationID int64 `json:"conversationId"`
	UserID         int64 `json:"userId"`
	IsTyping       bool  `json:"isTyping"`
}

func encodeEvent(eventType string, payload any) ([]byte, error) {
	return json.Marshal(OutboundEvent{Type: eventType, Payload: payload})
}

func encodeError(eventType string, message string) []byte {
	encoded, err := json.Marshal(OutboundEvent{Type: eventType, Error: message})
	if err != nil {
		return []byte(`{"type":"error","error":"internal error"}`)
	}
	return encoded
}

func notificationPayload(notification *models.Notification) NotificationPayload {
	return NotificationPayload{
		NotificationID: notification.ID,
		Type:           notification.Type,
		Title:          notification.Title,
		Message:        notification.Body,
		CreatedAt:      notification.CreatedAt,
		BookingID:      notification.BookingID,
		ConversationID: notification.ConversationID,
	}
}
