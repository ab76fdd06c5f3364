package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

const (
	maxMessageLength = 4000
	maxMessagePage   = 200
	previewLength    = 120
)

type ChatService struct {
	directory     *ConversationService
	messages      messageStore
	bookings      bookingLookup
	users         userReader
	notifications *NotificationService
	readStates    *ReadStateService
	pusher        Pusher
	logger        *slog.Logger

	// Held from append through fan-out so pushes for one conversation leave
	// in commit order.
	locks *conversationLocks
}

type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.ChatMessage
	RecipientID  int64
	Delivered    int
	Notification *models.Notification
}

type MessagePage struct {
	Messages   []models.ChatMessage `json:"messages"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

type ReadReceipt struct {
	ConversationID      int64 `json:"conversation_id"`
	MessagesMarked      int64 `json:"messages_marked"`
	NotificationsMarked int64 `json:"notifications_marked"`
}

func NewChatService(
	directory *ConversationService,
	messages messageStore,
	bookings bookingLookup,
	users userReader,
	notifications *NotificationService,
	readStates *ReadStateService,
	pusher Pusher,
	logger *slog.Logger,
) *ChatService {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		directory:     directory,
		messages:      messages,
		bookings:      bookings,
		users:         users,
		notifications: notifications,
		readStates:    readStates,
		pusher:        pusher,
		logger:        logger,
		locks:         newConversationLocks(),
	}
}

// SendMessage appends the message and fans it out once the write committed.
// The recipient also gets a chat_message notification; a failure there is
// logged because the message itself is already durable.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	body string,
) (*ChatDelivery, error) {
	if !validRole(role) {
		return nil, ErrForbidden
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxMessageLength {
		return nil, ErrInvalidInput
	}

	conversation, sender, err := s.directory.loadForParticipant(ctx, actorID, role, conversationID)
	if err != nil {
		return nil, err
	}
	recipient, ok := conversation.Other(actorID)
	if !ok {
		return nil, ErrNotFound
	}

	if err := s.ensureChatOpen(ctx, sender, recipient); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(conversationID)
	message, err := s.messages.Append(ctx, conversationID, actorID, sender.UserType, trimmed)
	if err != nil {
		unlock()
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("append message: %w", err)
	}
	delivered := s.pusher.PushMessage(conversation, message)
	unlock()

	s.logger.Debug("message appended",
		"conversation_id", conversationID,
		"message_id", message.ID,
		"user_id", actorID,
		"connections", delivered,
	)

	delivery := &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  recipient.UserID,
		Delivered:    delivered,
	}

	notification, err := s.notifyRecipient(ctx, conversation, message, recipient.UserID)
	if err != nil {
		s.logger.Error("chat notification failed",
			"conversation_id", conversationID,
			"message_id", message.ID,
			"user_id", recipient.UserID,
			"error", err,
		)
	}
	delivery.Notification = notification

	return delivery, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	cursor string,
	limit int,
) (*MessagePage, error) {
	if limit < 0 {
		return nil, ErrInvalidInput
	}
	if limit > maxMessagePage {
		limit = maxMessagePage
	}

	after, err := models.DecodeMessageCursor(cursor)
	if err != nil {
		return nil, ErrInvalidInput
	}

	if _, _, err := s.directory.loadForParticipant(ctx, actorID, role, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messages.List(ctx, conversationID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	page := &MessagePage{Messages: messages}
	if limit > 0 && len(messages) == limit {
		page.NextCursor = models.CursorAfter(messages[len(messages)-1]).Encode()
	}
	return page, nil
}

// MarkRead marks every inbound message of the conversation read for the
// caller together with the matching chat_message notifications.
func (s *ChatService) MarkRead(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) (*ReadReceipt, error) {
	if _, _, err := s.directory.loadForParticipant(ctx, actorID, role, conversationID); err != nil {
		return nil, err
	}

	marked, err := s.messages.MarkConversationRead(ctx, conversationID, actorID)
	if err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}

	notificationsMarked, err := s.readStates.MarkConversationRead(ctx, actorID, conversationID)
	if err != nil {
		return nil, err
	}

	if marked > 0 || notificationsMarked > 0 {
		s.pusher.PushConversationRead(actorID, conversationID, marked)
	}

	return &ReadReceipt{
		ConversationID:      conversationID,
		MessagesMarked:      marked,
		NotificationsMarked: notificationsMarked,
	}, nil
}

func (s *ChatService) UnreadCount(ctx context.Context, actorID int64, role string) (int, error) {
	if !validRole(role) {
		return 0, ErrForbidden
	}
	return s.messages.CountUnreadForUser(ctx, actorID)
}

func (s *ChatService) AuthorizeParticipant(ctx context.Context, actorID, conversationID int64) error {
	_, err := s.directory.AuthorizeParticipant(ctx, actorID, conversationID)
	return err
}

// ensureChatOpen keeps conversations read-only unless a booking between the
// pair is currently confirmed.
func (s *ChatService) ensureChatOpen(ctx context.Context, a, b models.Participant) error {
	clientID, providerID := a.UserID, b.UserID
	if a.UserType == models.UserTypeProvider {
		clientID, providerID = b.UserID, a.UserID
	}

	open, err := s.bookings.HasBookingWithStatus(ctx, clientID, providerID, models.BookingStatusConfirmed)
	if err != nil {
		return fmt.Errorf("check booking status: %w", err)
	}
	if !open {
		return ErrChatLocked
	}
	return nil
}

func (s *ChatService) notifyRecipient(
	ctx context.Context,
	conversation *models.Conversation,
	message *models.ChatMessage,
	recipientID int64,
) (*models.Notification, error) {
	title := "New message"
	if s.users != nil {
		if sender, err := s.users.GetByID(ctx, message.SenderID); err == nil && sender.DisplayName != "" {
			title = "New message from " + sender.DisplayName
		}
	}

	conversationID := conversation.ID
	return s.notifications.Emit(ctx, EmitInput{
		Type:           models.NotificationChatMessage,
		RecipientID:    recipientID,
		Title:          title,
		Body:           preview(message.Body),
		ConversationID: &conversationID,
	})
}

func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewLength-1]) + "…"
}
