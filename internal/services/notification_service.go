package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saeid-a/bookingchat/internal/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type EmitInput struct {
	Type           models.NotificationType
	RecipientID    int64
	Title          string
	Body           string
	BookingID      *int64
	ConversationID *int64
}

// NotificationService persists notifications before pushing them. A failed
// or missing push is recovered by the next pull.
type NotificationService struct {
	notifications notificationStore
	pusher        Pusher
	defaultLimit  int
	logger        *slog.Logger
}

func NewNotificationService(
	notifications notificationStore,
	pusher Pusher,
	defaultLimit int,
	logger *slog.Logger,
) *NotificationService {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if defaultLimit <= 0 || defaultLimit > maxNotificationLimit {
		defaultLimit = defaultNotificationLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		notifications: notifications,
		pusher:        pusher,
		defaultLimit:  defaultLimit,
		logger:        logger,
	}
}

func (s *NotificationService) Emit(ctx context.Context, input EmitInput) (*models.Notification, error) {
	title := strings.TrimSpace(input.Title)
	if !input.Type.Valid() || input.RecipientID <= 0 || title == "" {
		return nil, ErrInvalidInput
	}

	notification := &models.Notification{
		Type:           input.Type,
		RecipientID:    input.RecipientID,
		Title:          title,
		Body:           strings.TrimSpace(input.Body),
		BookingID:      input.BookingID,
		ConversationID: input.ConversationID,
	}
	created, err := s.notifications.Create(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	if !created {
		s.logger.Debug("booking notification already emitted",
			"notification_id", notification.ID,
			"type", notification.Type,
			"user_id", notification.RecipientID,
		)
		return notification, nil
	}

	delivered := s.pusher.PushNotification(notification)
	s.logger.Debug("notification emitted",
		"notification_id", notification.ID,
		"type", notification.Type,
		"user_id", notification.RecipientID,
		"connections", delivered,
	)

	return notification, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	limit, err := s.resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListForUser(ctx, userID, limit, false)
}

func (s *NotificationService) ListSaved(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	limit, err := s.resolveLimit(limit)
	if err != nil {
		return nil, err
	}
	return s.notifications.ListForUser(ctx, userID, limit, true)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.CountUnread(ctx, userID)
}

func (s *NotificationService) SavedCount(ctx context.Context, userID int64) (int, error) {
	return s.notifications.CountSaved(ctx, userID)
}

func (s *NotificationService) resolveLimit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, ErrInvalidInput
	case limit == 0:
		return s.defaultLimit, nil
	case limit > maxNotificationLimit:
		return maxNotificationLimit, nil
	default:
		return limit, nil
	}
}
