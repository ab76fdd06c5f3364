package handlers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/internal/services"
)

// InternalHandler is the ingress for the marketplace booking system. It is
// mounted behind the internal API key, not user tokens.
type InternalHandler struct {
	events   bookingEventSink
	notifier notificationEmitter
	logger   *slog.Logger
}

type bookingEventSink interface {
	OnBookingStatusChanged(ctx context.Context, bookingID int64, oldStatus, newStatus string) (*services.BookingEventResult, error)
}

type notificationEmitter interface {
	Emit(ctx context.Context, input services.EmitInput) (*models.Notification, error)
}

func NewInternalHandler(events bookingEventSink, notifier notificationEmitter, logger *slog.Logger) *InternalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalHandler{events: events, notifier: notifier, logger: logger}
}

type bookingStatusRequest struct {
	OldStatus string `json:"old_status" validate:"omitempty,booking_status"`
	NewStatus string `json:"new_status" validate:"required,booking_status"`
}

type emitNotificationRequest struct {
	Type           string `json:"type" validate:"required,notification_type"`
	RecipientID    int64  `json:"recipient_id" validate:"gt=0"`
	Title          string `json:"title" validate:"notblank,max=200"`
	Body           string `json:"body" validate:"max=2000"`
	BookingID      *int64 `json:"booking_id" validate:"omitempty,gt=0"`
	ConversationID *int64 `json:"conversation_id" validate:"omitempty,gt=0"`
}

func (h *InternalHandler) BookingStatusChanged(c *fiber.Ctx) error {
	bookingID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	var req bookingStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	result, err := h.events.OnBookingStatusChanged(c.UserContext(), bookingID, req.OldStatus, req.NewStatus)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Booking not found"})
		}
		h.logger.Error("booking event failed", "booking_id", bookingID, "new_status", req.NewStatus, "error", err)
		return mapNotificationError(c, err)
	}

	return c.JSON(result)
}

func (h *InternalHandler) EmitNotification(c *fiber.Ctx) error {
	var req emitNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	notification, err := h.notifier.Emit(c.UserContext(), services.EmitInput{
		Type:           models.NotificationType(req.Type),
		RecipientID:    req.RecipientID,
		Title:          req.Title,
		Body:           req.Body,
		BookingID:      req.BookingID,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"notification": notification})
}
