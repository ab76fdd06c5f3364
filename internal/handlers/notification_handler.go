package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/internal/services"
)

type NotificationHandler struct {
	feed   notificationFeed
	states notificationStateTracker
}

type notificationFeed interface {
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	ListSaved(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	SavedCount(ctx context.Context, userID int64) (int, error)
}

type notificationStateTracker interface {
	MarkRead(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error
	MarkUnread(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error
	Save(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error
	Unsave(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error
	Delete(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error
	StatusBatch(ctx context.Context, userID int64, notificationType models.NotificationType, ids []int64) ([]models.NotificationStatus, error)
}

func NewNotificationHandler(feed notificationFeed, states notificationStateTracker) *NotificationHandler {
	return &NotificationHandler{feed: feed, states: states}
}

type notificationRefRequest struct {
	Type string `json:"type" validate:"required,notification_type"`
	ID   int64  `json:"id" validate:"gt=0"`
}

type notificationStatusRequest struct {
	Type string  `json:"type" validate:"required,notification_type"`
	IDs  []int64 `json:"ids" validate:"required,max=200,dive,gt=0"`
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	return h.list(c, h.feed.ListForUser)
}

func (h *NotificationHandler) ListSaved(c *fiber.Ctx) error {
	return h.list(c, h.feed.ListSaved)
}

func (h *NotificationHandler) list(
	c *fiber.Ctx,
	load func(ctx context.Context, userID int64, limit int) ([]models.Notification, error),
) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	limit, err := parseNonNegativeInt(c.Query("limit"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit"})
	}
	if limit > maxNotificationPageLimit {
		limit = maxNotificationPageLimit
	}

	notifications, err := load(c.UserContext(), userID, limit)
	if err != nil {
		return mapNotificationError(c, err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	count, err := h.feed.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

func (h *NotificationHandler) SavedCount(c *fiber.Ctx) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	count, err := h.feed.SavedCount(c.UserContext(), userID)
	if err != nil {
		return mapNotificationError(c, err)
	}
	return c.JSON(fiber.Map{"saved_count": count})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	return h.applyState(c, h.states.MarkRead)
}

func (h *NotificationHandler) MarkUnread(c *fiber.Ctx) error {
	return h.applyState(c, h.states.MarkUnread)
}

func (h *NotificationHandler) Save(c *fiber.Ctx) error {
	return h.applyState(c, h.states.Save)
}

func (h *NotificationHandler) Unsave(c *fiber.Ctx) error {
	return h.applyState(c, h.states.Unsave)
}

func (h *NotificationHandler) applyState(
	c *fiber.Ctx,
	apply func(ctx context.Context, userID int64, notificationType models.NotificationType, id int64) error,
) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req notificationRefRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	if err := apply(c.UserContext(), userID, models.NotificationType(req.Type), req.ID); err != nil {
		return mapNotificationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) Status(c *fiber.Ctx) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	var req notificationStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	statuses, err := h.states.StatusBatch(c.UserContext(), userID, models.NotificationType(req.Type), req.IDs)
	if err != nil {
		return mapNotificationError(c, err)
	}
	if statuses == nil {
		statuses = []models.NotificationStatus{}
	}
	return c.JSON(fiber.Map{"statuses": statuses})
}

func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	userID, _, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notificationType := models.NotificationType(c.Params("type"))
	if !notificationType.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification type"})
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}

	if err := h.states.Delete(c.UserContext(), userID, notificationType, id); err != nil {
		return mapNotificationError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput), errors.Is(err, services.ErrInvalidStatus):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process notification request"})
	}
}
