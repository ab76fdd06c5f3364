package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

// memWorld is an in-memory stand-in for the PostgreSQL schema. Each fake
// store below is a view over the same world.
type memWorld struct {
	mu sync.Mutex

	clock time.Time

	users    map[int64]*models.User
	bookings map[int64]*models.Booking

	nextConversationID int64
	conversations      map[int64]*models.Conversation

	nextMessageID int64
	messages      []models.ChatMessage
	appendErr     error

	nextNotificationID int64
	notifications      []models.Notification
	createErr          error
	createErrFor       int64

	readStates map[models.NotificationKey]readRow
	saves      map[models.NotificationKey]time.Time
	dismissed  map[models.NotificationKey]struct{}
}

type readRow struct {
	isRead bool
	readAt *time.Time
}

func newMemWorld() *memWorld {
	return &memWorld{
		clock:         time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC),
		users:         make(map[int64]*models.User),
		bookings:      make(map[int64]*models.Booking),
		conversations: make(map[int64]*models.Conversation),
		readStates:    make(map[models.NotificationKey]readRow),
		saves:         make(map[models.NotificationKey]time.Time),
		dismissed:     make(map[models.NotificationKey]struct{}),
	}
}

func (w *memWorld) tick() time.Time {
	w.clock = w.clock.Add(time.Millisecond)
	return w.clock
}

func (w *memWorld) addUser(id int64, name, role string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.users[id] = &models.User{ID: id, DisplayName: name, Role: role}
}

func (w *memWorld) addBooking(id, clientID, providerID int64, status string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bookings[id] = &models.Booking{ID: id, ClientID: clientID, ProviderID: providerID, Status: status}
}

func (w *memWorld) setBookingStatus(id int64, status string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bookings[id].Status = status
}

type fakeBookings struct{ w *memWorld }

func (f fakeBookings) GetByID(_ context.Context, bookingID int64) (*models.Booking, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	booking, ok := f.w.bookings[bookingID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *booking
	return &copied, nil
}

func (f fakeBookings) HasBookingWithStatus(_ context.Context, clientID, providerID int64, status string) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	for _, booking := range f.w.bookings {
		if booking.ClientID == clientID && booking.ProviderID == providerID && booking.Status == status {
			return true, nil
		}
	}
	return false, nil
}

type fakeUsers struct{ w *memWorld }

func (f fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	user, ok := f.w.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

type fakeConversations struct{ w *memWorld }

func (f fakeConversations) GetOrCreateForPair(_ context.Context, clientID, providerID int64) (*models.Conversation, bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for _, conversation := range f.w.conversations {
		client, okClient := conversation.Participant(clientID)
		provider, okProvider := conversation.Participant(providerID)
		if okClient && okProvider && client.UserType == models.UserTypeClient && provider.UserType == models.UserTypeProvider {
			copied := *conversation
			return &copied, false, nil
		}
	}

	f.w.nextConversationID++
	id := f.w.nextConversationID
	now := f.w.tick()
	conversation := &models.Conversation{
		ID: id,
		Participants: []models.Participant{
			{ConversationID: id, UserID: clientID, UserType: models.UserTypeClient},
			{ConversationID: id, UserID: providerID, UserType: models.UserTypeProvider},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.w.conversations[id] = conversation
	copied := *conversation
	return &copied, true, nil
}

func (f fakeConversations) GetByID(_ context.Context, conversationID int64) (*models.Conversation, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	conversation, ok := f.w.conversations[conversationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *conversation
	return &copied, nil
}

func (f fakeConversations) ListForUser(_ context.Context, userID int64) ([]models.ConversationSummary, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	summaries := make([]models.ConversationSummary, 0)
	for _, conversation := range f.w.conversations {
		if _, ok := conversation.Participant(userID); !ok {
			continue
		}
		other, _ := conversation.Other(userID)
		summary := models.ConversationSummary{
			Conversation:     *conversation,
			OtherParticipant: other,
		}
		if user, ok := f.w.users[other.UserID]; ok {
			summary.OtherName = user.DisplayName
		}
		for i := range f.w.messages {
			message := f.w.messages[i]
			if message.ConversationID != conversation.ID {
				continue
			}
			summary.LastMessage = &message
			if message.SenderID != userID && !message.IsRead {
				summary.UnreadCount++
			}
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].UpdatedAt.Equal(summaries[j].UpdatedAt) {
			return summaries[i].ID > summaries[j].ID
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

func (f fakeConversations) Delete(_ context.Context, conversationID int64) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.conversations[conversationID]; !ok {
		return false, nil
	}
	delete(f.w.conversations, conversationID)

	kept := f.w.messages[:0]
	for _, message := range f.w.messages {
		if message.ConversationID != conversationID {
			kept = append(kept, message)
		}
	}
	f.w.messages = kept

	for _, notification := range f.w.notifications {
		if notification.Type != models.NotificationChatMessage || notification.ConversationID == nil || *notification.ConversationID != conversationID {
			continue
		}
		f.w.dismissed[models.NotificationKey{UserID: notification.RecipientID, Type: notification.Type, ID: notification.ID}] = struct{}{}
	}
	return true, nil
}

type fakeMessages struct{ w *memWorld }

func (f fakeMessages) Append(_ context.Context, conversationID, senderID int64, senderType, body string) (*models.ChatMessage, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	if f.w.appendErr != nil {
		return nil, f.w.appendErr
	}
	conversation, ok := f.w.conversations[conversationID]
	if !ok {
		return nil, pgx.ErrNoRows
	}

	f.w.nextMessageID++
	now := f.w.tick()
	conversation.UpdatedAt = now
	message := models.ChatMessage{
		ID:             f.w.nextMessageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderType:     senderType,
		Body:           body,
		CreatedAt:      now,
	}
	f.w.messages = append(f.w.messages, message)
	return &message, nil
}

func (f fakeMessages) List(_ context.Context, conversationID int64, after *models.MessageCursor, limit int) ([]models.ChatMessage, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	result := make([]models.ChatMessage, 0)
	for _, message := range f.w.messages {
		if message.ConversationID != conversationID {
			continue
		}
		if after != nil {
			if message.CreatedAt.Before(after.CreatedAt) {
				continue
			}
			if message.CreatedAt.Equal(after.CreatedAt) && message.ID <= after.ID {
				continue
			}
		}
		result = append(result, message)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f fakeMessages) MarkConversationRead(_ context.Context, conversationID, readerID int64) (int64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	var marked int64
	for i := range f.w.messages {
		message := &f.w.messages[i]
		if message.ConversationID == conversationID && message.SenderID != readerID && !message.IsRead {
			message.IsRead = true
			marked++
		}
	}
	return marked, nil
}

func (f fakeMessages) CountUnreadForUser(_ context.Context, userID int64) (int, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	count := 0
	for _, message := range f.w.messages {
		conversation, ok := f.w.conversations[message.ConversationID]
		if !ok {
			continue
		}
		if _, member := conversation.Participant(userID); !member {
			continue
		}
		if message.SenderID != userID && !message.IsRead {
			count++
		}
	}
	return count, nil
}

type fakeNotifications struct{ w *memWorld }

func (f fakeNotifications) Create(_ context.Context, notification *models.Notification) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	if f.w.createErr != nil && (f.w.createErrFor == 0 || f.w.createErrFor == notification.RecipientID) {
		return false, f.w.createErr
	}
	if notification.BookingID != nil && notification.Type.OncePerBooking() {
		for _, existing := range f.w.notifications {
			if existing.BookingID != nil && *existing.BookingID == *notification.BookingID &&
				existing.Type == notification.Type && existing.RecipientID == notification.RecipientID {
				notification.ID = existing.ID
				notification.Title = existing.Title
				notification.Body = existing.Body
				notification.CreatedAt = existing.CreatedAt
				return false, nil
			}
		}
	}
	f.w.nextNotificationID++
	notification.ID = f.w.nextNotificationID
	notification.CreatedAt = f.w.tick()
	f.w.notifications = append(f.w.notifications, *notification)
	return true, nil
}

func (f fakeNotifications) visible(userID int64) []models.Notification {
	result := make([]models.Notification, 0)
	for i := len(f.w.notifications) - 1; i >= 0; i-- {
		notification := f.w.notifications[i]
		if notification.RecipientID != userID {
			continue
		}
		key := models.NotificationKey{UserID: userID, Type: notification.Type, ID: notification.ID}
		if _, gone := f.w.dismissed[key]; gone {
			continue
		}
		if row, ok := f.w.readStates[key]; ok {
			notification.IsRead = row.isRead
			notification.ReadAt = row.readAt
		}
		if savedAt, ok := f.w.saves[key]; ok {
			saved := savedAt
			notification.SavedAt = &saved
		}
		result = append(result, notification)
	}
	return result
}

func (f fakeNotifications) ListForUser(_ context.Context, userID int64, limit int, savedOnly bool) ([]models.Notification, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	result := make([]models.Notification, 0)
	for _, notification := range f.visible(userID) {
		if savedOnly && notification.SavedAt == nil {
			continue
		}
		result = append(result, notification)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f fakeNotifications) CountUnread(_ context.Context, userID int64) (int, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	count := 0
	for _, notification := range f.visible(userID) {
		if !notification.IsRead {
			count++
		}
	}
	return count, nil
}

func (f fakeNotifications) CountSaved(_ context.Context, userID int64) (int, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	count := 0
	for _, notification := range f.visible(userID) {
		if notification.SavedAt != nil {
			count++
		}
	}
	return count, nil
}

func (f fakeNotifications) ExistsForRecipient(_ context.Context, userID int64, notificationType models.NotificationType, id int64) (bool, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	for _, notification := range f.w.notifications {
		if notification.ID == id && notification.Type == notificationType && notification.RecipientID == userID {
			return true, nil
		}
	}
	return false, nil
}

type fakeReadStates struct{ w *memWorld }

func (f fakeReadStates) SetRead(_ context.Context, key models.NotificationKey, read bool) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	if !read {
		f.w.readStates[key] = readRow{isRead: false}
		return nil
	}
	if row, ok := f.w.readStates[key]; ok && row.isRead {
		return nil
	}
	now := f.w.tick()
	f.w.readStates[key] = readRow{isRead: true, readAt: &now}
	return nil
}

func (f fakeReadStates) Save(_ context.Context, key models.NotificationKey) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	if _, ok := f.w.saves[key]; !ok {
		f.w.saves[key] = f.w.tick()
	}
	return nil
}

func (f fakeReadStates) Unsave(_ context.Context, key models.NotificationKey) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	delete(f.w.saves, key)
	return nil
}

func (f fakeReadStates) Dismiss(_ context.Context, key models.NotificationKey) error {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()
	f.w.dismissed[key] = struct{}{}
	delete(f.w.readStates, key)
	delete(f.w.saves, key)
	return nil
}

func (f fakeReadStates) StatusBatch(_ context.Context, userID int64, notificationType models.NotificationType, ids []int64) ([]models.NotificationStatus, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	statuses := make([]models.NotificationStatus, 0, len(ids))
	for _, id := range ids {
		key := models.NotificationKey{UserID: userID, Type: notificationType, ID: id}
		status := models.NotificationStatus{Type: notificationType, ID: id}
		if row, ok := f.w.readStates[key]; ok {
			status.IsRead = row.isRead
			status.ReadAt = row.readAt
		}
		if savedAt, ok := f.w.saves[key]; ok {
			saved := savedAt
			status.SavedAt = &saved
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (f fakeReadStates) MarkConversationNotificationsRead(_ context.Context, userID, conversationID int64) (int64, error) {
	f.w.mu.Lock()
	defer f.w.mu.Unlock()

	var marked int64
	for _, notification := range f.w.notifications {
		if notification.RecipientID != userID || notification.Type != models.NotificationChatMessage {
			continue
		}
		if notification.ConversationID == nil || *notification.ConversationID != conversationID {
			continue
		}
		key := models.NotificationKey{UserID: userID, Type: notification.Type, ID: notification.ID}
		if row, ok := f.w.readStates[key]; ok && row.isRead {
			continue
		}
		now := f.w.tick()
		f.w.readStates[key] = readRow{isRead: true, readAt: &now}
		marked++
	}
	return marked, nil
}

type recordingPusher struct {
	mu            sync.Mutex
	messages      []models.ChatMessage
	notifications []models.Notification
	reads         []int64
}

func (p *recordingPusher) PushMessage(_ *models.Conversation, message *models.ChatMessage) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, *message)
	return 1
}

func (p *recordingPusher) PushNotification(notification *models.Notification) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, *notification)
	return 1
}

func (p *recordingPusher) PushConversationRead(_, conversationID, _ int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = append(p.reads, conversationID)
	return 1
}

func (p *recordingPusher) pushedMessageIDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]int64, 0, len(p.messages))
	for _, message := range p.messages {
		ids = append(ids, message.ID)
	}
	return ids
}

var errStoreDown = errors.New("store unavailable")

type testHarness struct {
	world         *memWorld
	pusher        *recordingPusher
	directory     *ConversationService
	chat          *ChatService
	notifications *NotificationService
	readStates    *ReadStateService
	bookingEvents *BookingEventService
}

// newTestHarness seeds client 7 and provider 9 with bookings 42 and 43
// between them.
func newTestHarness() *testHarness {
	world := newMemWorld()
	world.addUser(7, "Casey Client", models.UserTypeClient)
	world.addUser(9, "Pat Provider", models.UserTypeProvider)
	world.addUser(11, "Sam Stranger", models.UserTypeClient)
	world.addBooking(42, 7, 9, models.BookingStatusConfirmed)
	world.addBooking(43, 7, 9, models.BookingStatusPending)

	pusher := &recordingPusher{}
	bookings := fakeBookings{w: world}
	notificationStore := fakeNotifications{w: world}

	directory := NewConversationService(fakeConversations{w: world}, bookings)
	notifications := NewNotificationService(notificationStore, pusher, 0, nil)
	readStates := NewReadStateService(fakeReadStates{w: world}, notificationStore)
	chat := NewChatService(directory, fakeMessages{w: world}, bookings, fakeUsers{w: world}, notifications, readStates, pusher, nil)

	return &testHarness{
		world:         world,
		pusher:        pusher,
		directory:     directory,
		chat:          chat,
		notifications: notifications,
		readStates:    readStates,
		bookingEvents: NewBookingEventService(bookings, directory, notifications, nil),
	}
}
