package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

type BookingEventResult struct {
	BookingID           int64                  `json:"booking_id"`
	Notifications       []*models.Notification `json:"notifications"`
	Conversation        *models.Conversation   `json:"conversation,omitempty"`
	ConversationCreated bool                   `json:"conversation_created"`
}

// BookingEventService turns booking status transitions from the marketplace
// into notifications and, once chat becomes possible, a conversation.
type BookingEventService struct {
	bookings      bookingLookup
	directory     *ConversationService
	notifications *NotificationService
	logger        *slog.Logger
}

func NewBookingEventService(
	bookings bookingLookup,
	directory *ConversationService,
	notifications *NotificationService,
	logger *slog.Logger,
) *BookingEventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingEventService{
		bookings:      bookings,
		directory:     directory,
		notifications: notifications,
		logger:        logger,
	}
}

// OnBookingStatusChanged handles one transition. An empty oldStatus means the
// booking was just created. Repeating the same status is a no-op.
func (s *BookingEventService) OnBookingStatusChanged(
	ctx context.Context,
	bookingID int64,
	oldStatus string,
	newStatus string,
) (*BookingEventResult, error) {
	if bookingID <= 0 {
		return nil, ErrInvalidInput
	}
	if !models.ValidBookingStatus(newStatus) {
		return nil, ErrInvalidStatus
	}
	if oldStatus != "" && !models.ValidBookingStatus(oldStatus) {
		return nil, ErrInvalidStatus
	}

	result := &BookingEventResult{
		BookingID:     bookingID,
		Notifications: make([]*models.Notification, 0, 2),
	}
	if oldStatus == newStatus {
		return result, nil
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if models.ChatEligible(newStatus) && !models.ChatEligible(oldStatus) {
		conversation, created, err := s.directory.EnsureForBooking(ctx, booking)
		if err != nil {
			return nil, err
		}
		result.Conversation = conversation
		result.ConversationCreated = created
	}

	for _, input := range bookingNotifications(booking, newStatus) {
		notification, err := s.notifications.Emit(ctx, input)
		if err != nil {
			return nil, err
		}
		result.Notifications = append(result.Notifications, notification)
	}

	s.logger.Info("booking status handled",
		"booking_id", bookingID,
		"old_status", oldStatus,
		"new_status", newStatus,
		"notifications", len(result.Notifications),
		"conversation_created", result.ConversationCreated,
	)

	return result, nil
}

func bookingNotifications(booking *models.Booking, status string) []EmitInput {
	bookingID := booking.ID
	build := func(recipientID int64, notificationType models.NotificationType, title, body string) EmitInput {
		return EmitInput{
			Type:        notificationType,
			RecipientID: recipientID,
			Title:       title,
			Body:        body,
			BookingID:   &bookingID,
		}
	}

	switch status {
	case models.BookingStatusPending:
		return []EmitInput{
			build(booking.ProviderID, models.NotificationBookingCreated,
				"New booking request", fmt.Sprintf("You have a new booking request (#%d).", bookingID)),
		}
	case models.BookingStatusConfirmed:
		return []EmitInput{
			build(booking.ClientID, models.NotificationBookingConfirmed,
				"Booking confirmed", fmt.Sprintf("Your booking #%d has been confirmed. You can now chat with your provider.", bookingID)),
		}
	case models.BookingStatusRejected:
		return []EmitInput{
			build(booking.ClientID, models.NotificationBookingRejected,
				"Booking rejected", fmt.Sprintf("Your booking #%d was rejected.", bookingID)),
		}
	case models.BookingStatusCancelled:
		body := fmt.Sprintf("Booking #%d has been cancelled.", bookingID)
		return []EmitInput{
			build(booking.ClientID, models.NotificationBookingCancelled, "Booking cancelled", body),
			build(booking.ProviderID, models.NotificationBookingCancelled, "Booking cancelled", body),
		}
	default:
		return nil
	}
}
