package services

import (
	"context"
	"fmt"

	"github.com/saeid-a/bookingchat/internal/models"
)

const maxStatusBatch = 200

// ReadStateService tracks per-user read, saved and dismissed flags for
// notifications. Every operation is safe to retry.
type ReadStateService struct {
	states        readStateStore
	notifications notificationStore
}

func NewReadStateService(states readStateStore, notifications notificationStore) *ReadStateService {
	return &ReadStateService{
		states:        states,
		notifications: notifications,
	}
}

func (s *ReadStateService) MarkRead(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error {
	return s.setRead(ctx, userID, notificationType, id, true)
}

func (s *ReadStateService) MarkUnread(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error {
	return s.setRead(ctx, userID, notificationType, id, false)
}

func (s *ReadStateService) Save(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error {
	key, err := s.ownedKey(ctx, userID, notificationType, id)
	if err != nil {
		return err
	}
	if err := s.states.Save(ctx, key); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}

// Unsave never fails for a notification the user no longer sees.
func (s *ReadStateService) Unsave(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error {
	key, err := buildKey(userID, notificationType, id)
	if err != nil {
		return err
	}
	if err := s.states.Unsave(ctx, key); err != nil {
		return fmt.Errorf("unsave notification: %w", err)
	}
	return nil
}

// Delete removes the notification from this user's feed only.
func (s *ReadStateService) Delete(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error {
	key, err := buildKey(userID, notificationType, id)
	if err != nil {
		return err
	}
	if err := s.states.Dismiss(ctx, key); err != nil {
		return fmt.Errorf("dismiss notification: %w", err)
	}
	return nil
}

func (s *ReadStateService) StatusBatch(
	ctx context.Context,
	userID int64,
	notificationType models.NotificationType,
	ids []int64,
) ([]models.NotificationStatus, error) {
	if userID <= 0 || !notificationType.Valid() || len(ids) > maxStatusBatch {
		return nil, ErrInvalidInput
	}

	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, ErrInvalidInput
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	return s.states.StatusBatch(ctx, userID, notificationType, unique)
}

// MarkConversationRead marks the chat_message notifications of one
// conversation read for userID.
func (s *ReadStateService) MarkConversationRead(ctx context.Context, userID, conversationID int64) (int64, error) {
	marked, err := s.states.MarkConversationNotificationsRead(ctx, userID, conversationID)
	if err != nil {
		return 0, fmt.Errorf("mark conversation notifications read: %w", err)
	}
	return marked, nil
}

func (s *ReadStateService) setRead(
	ctx context.Context,
	userID int64,
	notificationType models.NotificationType,
	id int64,
	read bool,
) error {
	key, err := s.ownedKey(ctx, userID, notificationType, id)
	if err != nil {
		return err
	}
	if err := s.states.SetRead(ctx, key, read); err != nil {
		return fmt.Errorf("set read state: %w", err)
	}
	return nil
}

func (s *ReadStateService) ownedKey(
	ctx context.Context,
	userID int64,
	notificationType models.NotificationType,
	id int64,
) (models.NotificationKey, error) {
	key, err := buildKey(userID, notificationType, id)
	if err != nil {
		return key, err
	}

	exists, err := s.notifications.ExistsForRecipient(ctx, userID, notificationType, id)
	if err != nil {
		return key, fmt.Errorf("load notification: %w", err)
	}
	if !exists {
		return key, ErrNotFound
	}
	return key, nil
}

func buildKey(userID int64, notificationType models.NotificationType, id int64) (models.NotificationKey, error) {
	if userID <= 0 || id <= 0 || !notificationType.Valid() {
		return models.NotificationKey{}, ErrInvalidInput
	}
	return models.NotificationKey{UserID: userID, Type: notificationType, ID: id}, nil
}
