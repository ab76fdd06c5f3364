package services

import (
	"context"

	"github.com/saeid-a/bookingchat/internal/models"
)

type bookingLookup interface {
	GetByID(ctx context.Context, bookingID int64) (*models.Booking, error)
	HasBookingWithStatus(ctx context.Context, clientID, providerID int64, status string) (bool, error)
}

type conversationStore interface {
	GetOrCreateForPair(ctx context.Context, clientID, providerID int64) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID int64) ([]models.ConversationSummary, error)
	Delete(ctx context.Context, conversationID int64) (bool, error)
}

type messageStore interface {
	Append(ctx context.Context, conversationID, senderID int64, senderType, body string) (*models.ChatMessage, error)
	List(ctx context.Context, conversationID int64, after *models.MessageCursor, limit int) ([]models.ChatMessage, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID int64) (int64, error)
	CountUnreadForUser(ctx context.Context, userID int64) (int, error)
}

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) (bool, error)
	ListForUser(ctx context.Context, userID int64, limit int, savedOnly bool) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	CountSaved(ctx context.Context, userID int64) (int, error)
	ExistsForRecipient(ctx context.Context, userID int64, notificationType models.NotificationType, notificationID int64) (bool, error)
}

type readStateStore interface {
	SetRead(ctx context.Context, key models.NotificationKey, read bool) error
	Save(ctx context.Context, key models.NotificationKey) error
	Unsave(ctx context.Context, key models.NotificationKey) error
	Dismiss(ctx context.Context, key models.NotificationKey) error
	StatusBatch(ctx context.Context, userID int64, notificationType models.NotificationType, ids []int64) ([]models.NotificationStatus, error)
	MarkConversationNotificationsRead(ctx context.Context, userID, conversationID int64) (int64, error)
}

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// Pusher delivers committed events to live connections. Implementations must
// not block and must absorb delivery failures; callers only invoke it after
// the corresponding write has committed.
type Pusher interface {
	PushMessage(conversation *models.Conversation, message *models.ChatMessage) int
	PushNotification(notification *models.Notification) int
	PushConversationRead(readerID, conversationID, marked int64) int
}

type noopPusher struct{}

func (noopPusher) PushMessage(*models.Conversation, *models.ChatMessage) int { return 0 }
func (noopPusher) PushNotification(*models.Notification) int                 { return 0 }
func (noopPusher) PushConversationRead(int64, int64, int64) int              { return 0 }
