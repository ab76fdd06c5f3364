package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/bookingchat/internal/middleware"
	"github.com/saeid-a/bookingchat/internal/models"
	"github.com/saeid-a/bookingchat/internal/services"
	chatws "github.com/saeid-a/bookingchat/internal/websocket"
)

type ChatHandler struct {
	directory conversationDirectory
	chat      chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
	wsOptions chatws.Options
	logger    *slog.Logger
}

type conversationDirectory interface {
	GetOrCreateForBooking(ctx context.Context, actorID int64, role string, bookingID int64) (*models.Conversation, error)
	ListForUser(ctx context.Context, actorID int64, role string) ([]models.ConversationSummary, error)
	Delete(ctx context.Context, actorID int64, role string, conversationID int64) error
}

type chatApplicationService interface {
	chatws.ChatService
	ListMessages(ctx context.Context, actorID int64, role string, conversationID int64, cursor string, limit int) (*services.MessagePage, error)
	UnreadCount(ctx context.Context, actorID int64, role string) (int, error)
}

func NewChatHandler(
	directory conversationDirectory,
	chat chatApplicationService,
	hub *chatws.Hub,
	jwtSecret string,
	wsOptions chatws.Options,
	logger *slog.Logger,
) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		directory: directory,
		chat:      chat,
		hub:       hub,
		jwtSecret: jwtSecret,
		wsOptions: wsOptions,
		logger:    logger,
	}
}

type sendMessageRequest struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (h *ChatHandler) ConversationForBooking(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	bookingID, err := parsePathID(c, "bookingId")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid booking id"})
	}

	conversation, err := h.directory.GetOrCreateForBooking(c.UserContext(), actorID, role, bookingID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversations, err := h.directory.ListForUser(c.UserContext(), actorID, role)
	if err != nil {
		return mapChatError(c, err)
	}
	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) UnreadCount(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	count, err := h.chat.UnreadCount(c.UserContext(), actorID, role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"unread_count": count})
}

// GetMessages returns the full history when neither cursor nor limit is set.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	limit, err := parseNonNegativeInt(c.Query("limit"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid limit"})
	}
	if limit > maxMessagePageLimit {
		limit = maxMessagePageLimit
	}

	page, err := h.chat.ListMessages(c.UserContext(), actorID, role, conversationID, strings.TrimSpace(c.Query("cursor")), limit)
	if err != nil {
		return mapChatError(c, err)
	}
	if page.Messages == nil {
		page.Messages = []models.ChatMessage{}
	}

	return c.JSON(page)
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	delivery, err := h.chat.SendMessage(c.UserContext(), actorID, role, conversationID, req.Body)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   delivery.Message,
		"delivered": delivery.Delivered,
	})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	receipt, err := h.chat.MarkRead(c.UserContext(), actorID, role, conversationID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(receipt)
}

func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	actorID, role, ok := actorFromLocals(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	conversationID, err := parsePathID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if err := h.directory.Delete(c.UserContext(), actorID, role, conversationID); err != nil {
		return mapChatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// WebSocketAuth accepts an optional token at upgrade time. Without one the
// connection has to send an authenticate event before anything else.
func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	token := upgradeToken(c)
	if token == "" {
		return c.Next()
	}

	userID, role, err := middleware.TokenSubject(token, h.jwtSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("ws_user_id", userID)
	c.Locals("ws_role", role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	client := chatws.NewClient(h.hub, conn, h.wsOptions, h.logger)

	if userID, ok := conn.Locals("ws_user_id").(int64); ok && userID > 0 {
		role, _ := conn.Locals("ws_role").(string)
		client.Authenticate(userID, role)
	}

	client.Serve(context.Background(), h.chat, h.authenticate)
}

func (h *ChatHandler) authenticate(token string) (int64, string, error) {
	return middleware.TokenSubject(strings.TrimSpace(token), h.jwtSecret)
}

func upgradeToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	if token, ok := middleware.BearerToken(strings.TrimSpace(c.Get("Authorization"))); ok {
		return token
	}
	return ""
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Not found"})
	case errors.Is(err, services.ErrChatLocked):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Conversation is read-only"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
