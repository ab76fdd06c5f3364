package client

import (
	"encoding/json"
	"time"
)

// Participant is one side of a conversation.
type Participant struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	UserType       string `json:"user_type"`
}

type Conversation struct {
	ID           int64         `json:"id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Body           string    `json:"body"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConversationSummary is a conversation list row with its preview and the
// caller's unread count.
type ConversationSummary struct {
	Conversation
	OtherParticipant Participant `json:"other_participant"`
	OtherName        string      `json:"other_name"`
	LastMessage      *Message    `json:"last_message,omitempty"`
	UnreadCount      int         `json:"unread_count"`
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

type ReadReceipt struct {
	ConversationID      int64 `json:"conversation_id"`
	MessagesMarked      int64 `json:"messages_marked"`
	NotificationsMarked int64 `json:"notifications_marked"`
}

type Notification struct {
	ID             int64      `json:"id"`
	Type           string     `json:"type"`
	RecipientID    int64      `json:"recipient_id"`
	Title          string     `json:"title"`
	Message        string     `json:"message"`
	BookingID      *int64     `json:"booking_id,omitempty"`
	ConversationID *int64     `json:"conversation_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	SavedAt        *time.Time `json:"saved_at,omitempty"`
}

type NotificationStatus struct {
	Type    string     `json:"type"`
	ID      int64      `json:"id"`
	IsRead  bool       `json:"is_read"`
	ReadAt  *time.Time `json:"read_at,omitempty"`
	SavedAt *time.Time `json:"saved_at,omitempty"`
}

// Event is one frame pushed by the gateway. Payload is decoded lazily with
// the typed helpers below.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type NewMessageEvent struct {
	ConversationID int64   `json:"conversationId"`
	Message        Message `json:"message"`
}

type NotificationEvent struct {
	NotificationID int64     `json:"notificationId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
	BookingID      *int64    `json:"bookingId,omitempty"`
	ConversationID *int64    `json:"conversationId,omitempty"`
}

type ConversationReadEvent struct {
	ConversationID int64 `json:"conversationId"`
	ReaderID       int64 `json:"readerId"`
	Marked         int64 `json:"marked"`
}

func (e Event) NewMessage() (NewMessageEvent, error) {
	var out NewMessageEvent
	err := json.Unmarshal(e.Payload, &out)
	return out, err
}

func (e Event) Notification() (NotificationEvent, error) {
	var out NotificationEvent
	err := json.Unmarshal(e.Payload, &out)
	return out, err
}

func (e Event) ConversationRead() (ConversationReadEvent, error) {
	var out ConversationReadEvent
	err := json.Unmarshal(e.Payload, &out)
	return out, err
}
