package models

import "time"

const (
	UserTypeClient   = "client"
	UserTypeProvider = "provider"
)

type Conversation struct {
	ID           int64         `json:"id"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Participant returns the membership row for userID, if any.
func (c *Conversation) Participant(userID int64) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID int64) (Participant, bool) {
	for _, p := range c.Participants {
		if p.UserID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

func (c *Conversation) ParticipantIDs() []int64 {
	ids := make([]int64, 0, len(c.Participants))
	for _, p := range c.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

type Participant struct {
	ConversationID int64  `json:"conversation_id"`
	UserID         int64  `json:"user_id"`
	UserType       string `json:"user_type"`
}

type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	SenderType     string    `json:"sender_type"`
	Body           string    `json:"body"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type ConversationSummary struct {
	Conversation
	OtherParticipant Participant  `json:"other_participant"`
	OtherName        string       `json:"other_name"`
	LastMessage      *ChatMessage `json:"last_message,omitempty"`
	UnreadCount      int          `json:"unread_count"`
}
