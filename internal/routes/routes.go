package routes

import (
	"log/slog"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/saeid-a/bookingchat/internal/config"
	"github.com/saeid-a/bookingchat/internal/handlers"
	"github.com/saeid-a/bookingchat/internal/middleware"
	"github.com/saeid-a/bookingchat/internal/repository"
	"github.com/saeid-a/bookingchat/internal/services"
	chatws "github.com/saeid-a/bookingchat/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	userRepo := repository.NewUserRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	readStateRepo := repository.NewReadStateRepository(db)

	// The hub is the push side of every service, so it exists first.
	chatHub := chatws.NewHub(logger)

	directory := services.NewConversationService(conversationRepo, bookingRepo)
	notificationService := services.NewNotificationService(notificationRepo, chatHub, cfg.NotificationPage, logger)
	readStateService := services.NewReadStateService(readStateRepo, notificationRepo)
	chatService := services.NewChatService(
		directory,
		messageRepo,
		bookingRepo,
		userRepo,
		notificationService,
		readStateService,
		chatHub,
		logger,
	)
	bookingEvents := services.NewBookingEventService(bookingRepo, directory, notificationService, logger)

	chatHandler := handlers.NewChatHandler(directory, chatService, chatHub, cfg.JWTSecret, websocketOptions(cfg), logger)
	notificationHandler := handlers.NewNotificationHandler(notificationService, readStateService)
	internalHandler := handlers.NewInternalHandler(bookingEvents, notificationService, logger)

	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	api := app.Group("/api")

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Get("/unread-count", chatHandler.UnreadCount)
	conversations.Post("/for-booking/:bookingId", chatHandler.ConversationForBooking)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Put("/:id/messages/read", chatHandler.MarkRead)
	conversations.Delete("/:id", chatHandler.DeleteConversation)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Get("/unread-count", notificationHandler.UnreadCount)
	notifications.Get("/saved", notificationHandler.ListSaved)
	notifications.Get("/saved-count", notificationHandler.SavedCount)
	notifications.Post("/read", notificationHandler.MarkRead)
	notifications.Post("/unread", notificationHandler.MarkUnread)
	notifications.Post("/save", notificationHandler.Save)
	notifications.Delete("/save", notificationHandler.Unsave)
	notifications.Post("/status", notificationHandler.Status)
	notifications.Delete("/:type/:id", notificationHandler.Delete)

	internal := app.Group("/internal", middleware.InternalAPIKey(cfg.InternalAPIKey))
	internal.Post("/bookings/:id/status", internalHandler.BookingStatusChanged)
	internal.Post("/notifications", internalHandler.EmitNotification)

	return nil
}

func websocketOptions(cfg *config.Config) chatws.Options {
	return chatws.Options{
		IdleTimeout:   cfg.WSIdleTimeout,
		AuthTimeout:   cfg.WSAuthTimeout,
		SendBuffer:    cfg.WSSendBuffer,
		RatePerSecond: cfg.WSRatePerSecond,
		RateBurst:     cfg.WSRateBurst,
	}
}
