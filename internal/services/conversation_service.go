package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

// ConversationService is the conversation directory: one conversation per
// (client, provider) pair, created lazily from a booking.
type ConversationService struct {
	conversations conversationStore
	bookings      bookingLookup
}

func NewConversationService(conversations conversationStore, bookings bookingLookup) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		bookings:      bookings,
	}
}

func (s *ConversationService) GetOrCreateForBooking(
	ctx context.Context,
	actorID int64,
	role string,
	bookingID int64,
) (*models.Conversation, error) {
	if !validRole(role) {
		return nil, ErrForbidden
	}
	if bookingID <= 0 {
		return nil, ErrInvalidInput
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if _, ok := booking.Role(actorID); !ok {
		return nil, ErrForbidden
	}

	conversation, _, err := s.EnsureForBooking(ctx, booking)
	return conversation, err
}

// EnsureForBooking resolves the booking's pair to its conversation without a
// caller check. It is the entry point for booking lifecycle events.
func (s *ConversationService) EnsureForBooking(
	ctx context.Context,
	booking *models.Booking,
) (*models.Conversation, bool, error) {
	if booking.ClientID <= 0 || booking.ProviderID <= 0 || booking.ClientID == booking.ProviderID {
		return nil, false, ErrInvalidInput
	}

	conversation, created, err := s.conversations.GetOrCreateForPair(ctx, booking.ClientID, booking.ProviderID)
	if err != nil {
		return nil, false, fmt.Errorf("get or create conversation: %w", err)
	}
	return conversation, created, nil
}

func (s *ConversationService) ListForUser(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.ConversationSummary, error) {
	if !validRole(role) {
		return nil, ErrForbidden
	}

	return s.conversations.ListForUser(ctx, actorID)
}

// Delete is permanent. Messages and participants are removed with the
// conversation.
func (s *ConversationService) Delete(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) error {
	if _, _, err := s.loadForParticipant(ctx, actorID, role, conversationID); err != nil {
		return err
	}

	deleted, err := s.conversations.Delete(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// AuthorizeParticipant returns the conversation when actorID is one of its
// participants.
func (s *ConversationService) AuthorizeParticipant(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.Conversation, error) {
	conversation, _, err := s.loadForParticipant(ctx, actorID, "", conversationID)
	return conversation, err
}

func (s *ConversationService) loadForParticipant(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) (*models.Conversation, models.Participant, error) {
	if role != "" && !validRole(role) {
		return nil, models.Participant{}, ErrForbidden
	}
	if conversationID <= 0 {
		return nil, models.Participant{}, ErrInvalidInput
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.Participant{}, ErrNotFound
		}
		return nil, models.Participant{}, fmt.Errorf("load conversation: %w", err)
	}

	participant, ok := conversation.Participant(actorID)
	if !ok {
		return nil, models.Participant{}, ErrForbidden
	}

	return conversation, participant, nil
}
