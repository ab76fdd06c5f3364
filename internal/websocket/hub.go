package chatws

import (
	"log/slog"
	"sync"

	"github.com/saeid-a/bookingchat/internal/models"
)

// Hub is the gateway registry: authenticated connections by user and
// conversation subscribers by conversation id. All registry access goes
// through Hub methods under mu.
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]map[*Client]struct{}
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		users:  make(map[int64]map[*Client]struct{}),
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.users[client.userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[client.userID] = set
	}
	set[client] = struct{}{}
}

// Unregister drops the client from every registry entry and closes its send
// queue. Safe to call more than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	h.removeLocked(client)
	h.mu.Unlock()

	client.closeSend()
}

func (h *Hub) Join(client *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.rooms[conversationID]
	if !ok {
		set = make(map[*Client]struct{})
		h.rooms[conversationID] = set
	}
	set[client] = struct{}{}
	client.rooms[conversationID] = struct{}{}
}

func (h *Hub) Leave(client *Client, conversationID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(client, conversationID)
}

func (h *Hub) IsSubscribed(client *Client, conversationID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := client.rooms[conversationID]
	return ok
}

func (h *Hub) ConnectionCount(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

func (h *Hub) SubscriberCount(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[conversationID])
}

// PushMessage sends new_message to the conversation's subscribers and to every
// connection of either participant, once per connection.
func (h *Hub) PushMessage(conversation *models.Conversation, message *models.ChatMessage) int {
	payload, err := encodeEvent(EventNewMessage, NewMessagePayload{
		ConversationID: message.ConversationID,
		Message:        message,
	})
	if err != nil {
		h.logger.Error("encode new_message", "conversation_id", message.ConversationID, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make(map[*Client]struct{})
	for client := range h.rooms[message.ConversationID] {
		targets[client] = struct{}{}
	}
	for _, participantID := range conversation.ParticipantIDs() {
		for client := range h.users[participantID] {
			targets[client] = struct{}{}
		}
	}

	return h.deliverLocked(targets, payload)
}

func (h *Hub) PushNotification(notification *models.Notification) int {
	payload, err := encodeEvent(EventNotification, notificationPayload(notification))
	if err != nil {
		h.logger.Error("encode notification", "notification_id", notification.ID, "error", err)
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.deliverLocked(h.users[notification.RecipientID], payload)
}

// PushConversationRead tells the reader's other connections to clear their
// unread state for the conversation.
func (h *Hub) PushConversationRead(readerID, conversationID, marked int64) int {
	payload, err := encodeEvent(EventConversationRead, ConversationReadPayload{
		ConversationID: conversationID,
		ReaderID:       readerID,
		Marked:         marked,
	})
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.deliverLocked(h.users[readerID], payload)
}

// BroadcastTyping relays a typing indicator to the room, skipping the sender.
func (h *Hub) BroadcastTyping(from *Client, conversationID int64, isTyping bool) int {
	payload, err := encodeEvent(EventTyping, TypingPayload{
		ConversationID: conversationID,
		UserID:         from.userID,
		IsTyping:       isTyping,
	})
	if err != nil {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := make(map[*Client]struct{})
	for client := range h.rooms[conversationID] {
		if client != from {
			targets[client] = struct{}{}
		}
	}
	return h.deliverLocked(targets, payload)
}

// deliverLocked never blocks. A client whose queue is full is dropped; it
// recovers through a full pull when it reconnects.
func (h *Hub) deliverLocked(targets map[*Client]struct{}, payload []byte) int {
	delivered := 0
	var dropped []*Client
	for client := range targets {
		if client.enqueue(payload) {
			delivered++
			continue
		}
		dropped = append(dropped, client)
	}

	for _, client := range dropped {
		h.logger.Warn("dropping slow websocket client",
			"connection_id", client.ID,
			"user_id", client.userID,
		)
		h.removeLocked(client)
	}
	return delivered
}

func (h *Hub) removeLocked(client *Client) {
	if set, ok := h.users[client.userID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.users, client.userID)
		}
	}
	for conversationID := range client.rooms {
		h.leaveLocked(client, conversationID)
	}
}

func (h *Hub) leaveLocked(client *Client, conversationID int64) {
	delete(client.rooms, conversationID)
	set, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.rooms, conversationID)
	}
}
