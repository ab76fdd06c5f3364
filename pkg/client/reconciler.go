package client

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Puller is the pull side of the API the Reconciler refreshes from. *Client
// implements it.
type Puller interface {
	ListConversations(ctx context.Context) ([]ConversationSummary, error)
	ChatUnreadCount(ctx context.Context) (int, error)
	ListMessages(ctx context.Context, conversationID int64, cursor string, limit int) (*MessagePage, error)
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
	NotificationUnreadCount(ctx context.Context) (int, error)
	NotificationSavedCount(ctx context.Context) (int, error)
}

// State is the local view a UI renders: the chat surface and the
// notification center.
type State struct {
	Conversations      []ConversationSummary
	ChatUnread         int
	OpenConversationID int64
	Messages           []Message
	Notifications      []Notification
	NotificationUnread int
	SavedCount         int
}

// ChatBadge sums the per-conversation unread counts. After Reconcile it
// equals ChatUnread.
func (s State) ChatBadge() int {
	total := 0
	for _, conversation := range s.Conversations {
		total += conversation.UnreadCount
	}
	return total
}

// Reconciler merges push events into a local State speculatively and replaces
// that state wholesale on Reconcile. Pushes are at-least-once, so events are
// de-duplicated by id.
type Reconciler struct {
	api               Puller
	userID            int64
	notificationLimit int

	mu                sync.Mutex
	state             State
	seenMessages      map[int64]struct{}
	seenNotifications map[int64]struct{}
}

func NewReconciler(api Puller, userID int64, notificationLimit int) *Reconciler {
	return &Reconciler{
		api:               api,
		userID:            userID,
		notificationLimit: notificationLimit,
		seenMessages:      make(map[int64]struct{}),
		seenNotifications: make(map[int64]struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.state
	out.Conversations = append([]ConversationSummary(nil), r.state.Conversations...)
	out.Messages = append([]Message(nil), r.state.Messages...)
	out.Notifications = append([]Notification(nil), r.state.Notifications...)
	return out
}

// Open makes conversationID the conversation whose messages are tracked and
// loads its history.
func (r *Reconciler) Open(ctx context.Context, conversationID int64) error {
	page, err := r.api.ListMessages(ctx, conversationID, "", 0)
	if err != nil {
		return fmt.Errorf("list messages: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.OpenConversationID = conversationID
	r.replaceMessages(page.Messages)
	return nil
}

// Reconcile performs the full pull and replaces everything populated from
// pushes. Call it on (re)connect and when the app returns to the foreground.
// State is only replaced when every pull succeeded.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	conversations, err := r.api.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	chatUnread, err := r.api.ChatUnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("chat unread count: %w", err)
	}
	notifications, err := r.api.ListNotifications(ctx, r.notificationLimit)
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	notificationUnread, err := r.api.NotificationUnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("notification unread count: %w", err)
	}
	savedCount, err := r.api.NotificationSavedCount(ctx)
	if err != nil {
		return fmt.Errorf("notification saved count: %w", err)
	}

	r.mu.Lock()
	openID := r.state.OpenConversationID
	r.mu.Unlock()

	var messages []Message
	if openID > 0 {
		page, err := r.api.ListMessages(ctx, openID, "", 0)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		messages = page.Messages
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = State{
		Conversations:      conversations,
		ChatUnread:         chatUnread,
		OpenConversationID: openID,
		Notifications:      notifications,
		NotificationUnread: notificationUnread,
		SavedCount:         savedCount,
	}
	r.seenMessages = make(map[int64]struct{}, len(messages)+len(conversations))
	for _, conversation := range conversations {
		if conversation.LastMessage != nil {
			r.seenMessages[conversation.LastMessage.ID] = struct{}{}
		}
	}
	r.replaceMessages(messages)

	r.seenNotifications = make(map[int64]struct{}, len(notifications))
	for _, notification := range notifications {
		r.seenNotifications[notification.ID] = struct{}{}
	}
	return nil
}

// Apply merges one pushed event. It reports whether the event changed the
// state; duplicates and unrelated events return false.
func (r *Reconciler) Apply(event Event) (bool, error) {
	switch event.Type {
	case "new_message":
		payload, err := event.NewMessage()
		if err != nil {
			return false, fmt.Errorf("decode new_message: %w", err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.applyMessage(payload.Message), nil
	case "notification":
		payload, err := event.Notification()
		if err != nil {
			return false, fmt.Errorf("decode notification: %w", err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.applyNotification(payload), nil
	case "conversation_read":
		payload, err := event.ConversationRead()
		if err != nil {
			return false, fmt.Errorf("decode conversation_read: %w", err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.applyConversationRead(payload), nil
	default:
		return false, nil
	}
}

func (r *Reconciler) applyMessage(message Message) bool {
	if _, seen := r.seenMessages[message.ID]; seen {
		return false
	}
	r.seenMessages[message.ID] = struct{}{}

	index := -1
	for i := range r.state.Conversations {
		if r.state.Conversations[i].ID == message.ConversationID {
			index = i
			break
		}
	}
	// Messages commit in order per conversation, so anything not after the
	// pulled preview was already counted by the last pull.
	if index >= 0 {
		if last := r.state.Conversations[index].LastMessage; last != nil && !after(message, *last) {
			return false
		}
	}

	if message.ConversationID == r.state.OpenConversationID {
		r.state.Messages = append(r.state.Messages, message)
		sort.SliceStable(r.state.Messages, func(i, j int) bool {
			return after(r.state.Messages[j], r.state.Messages[i])
		})
	}

	inbound := message.SenderID != r.userID
	if index >= 0 {
		conversation := &r.state.Conversations[index]
		last := message
		conversation.LastMessage = &last
		conversation.UpdatedAt = message.CreatedAt
		if inbound {
			conversation.UnreadCount++
			r.state.ChatUnread++
		}
		// Most recent activity first.
		moved := *conversation
		copy(r.state.Conversations[1:index+1], r.state.Conversations[:index])
		r.state.Conversations[0] = moved
		return true
	}

	// Unknown conversation: only the badge can be updated until the next pull.
	if inbound {
		r.state.ChatUnread++
	}
	return true
}

func (r *Reconciler) applyNotification(payload NotificationEvent) bool {
	if _, seen := r.seenNotifications[payload.NotificationID]; seen {
		return false
	}
	r.seenNotifications[payload.NotificationID] = struct{}{}

	notification := Notification{
		ID:             payload.NotificationID,
		Type:           payload.Type,
		RecipientID:    r.userID,
		Title:          payload.Title,
		Message:        payload.Message,
		BookingID:      payload.BookingID,
		ConversationID: payload.ConversationID,
		CreatedAt:      payload.CreatedAt,
	}
	r.state.Notifications = append([]Notification{notification}, r.state.Notifications...)
	r.state.NotificationUnread++
	return true
}

// applyConversationRead mirrors what markRead did on the server for the
// reader's own other connections.
func (r *Reconciler) applyConversationRead(payload ConversationReadEvent) bool {
	if payload.ReaderID != r.userID {
		return false
	}

	changed := false
	for i := range r.state.Conversations {
		conversation := &r.state.Conversations[i]
		if conversation.ID != payload.ConversationID || conversation.UnreadCount == 0 {
			continue
		}
		r.state.ChatUnread -= conversation.UnreadCount
		if r.state.ChatUnread < 0 {
			r.state.ChatUnread = 0
		}
		conversation.UnreadCount = 0
		changed = true
	}

	for i := range r.state.Notifications {
		notification := &r.state.Notifications[i]
		if notification.Type != "chat_message" || notification.IsRead {
			continue
		}
		if notification.ConversationID == nil || *notification.ConversationID != payload.ConversationID {
			continue
		}
		notification.IsRead = true
		if r.state.NotificationUnread > 0 {
			r.state.NotificationUnread--
		}
		changed = true
	}

	if payload.ConversationID == r.state.OpenConversationID {
		for i := range r.state.Messages {
			if r.state.Messages[i].SenderID != r.userID && !r.state.Messages[i].IsRead {
				r.state.Messages[i].IsRead = true
				changed = true
			}
		}
	}
	return changed
}

// after orders messages the way the server does: created_at, then id.
func after(a, b Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func (r *Reconciler) replaceMessages(messages []Message) {
	r.state.Messages = append([]Message(nil), messages...)
	for _, message := range messages {
		r.seenMessages[message.ID] = struct{}{}
	}
}
