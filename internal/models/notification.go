package models

import "time"

type NotificationType string

const (
	NotificationBookingCreated      NotificationType = "booking_created"
	NotificationBookingConfirmed    NotificationType = "booking_confirmed"
	NotificationBookingRejected     NotificationType = "booking_rejected"
	NotificationBookingCancelled    NotificationType = "booking_cancelled"
	NotificationReportSent          NotificationType = "report_sent"
	NotificationBookingReminderDay  NotificationType = "booking_reminder_day"
	NotificationBookingReminderHour NotificationType = "booking_reminder_hour"
	NotificationBookingTimeChanged  NotificationType = "booking_time_changed"
	NotificationChatMessage         NotificationType = "chat_message"
	NotificationPaymentConfirmed    NotificationType = "payment_confirmed"
)

var notificationTypes = map[NotificationType]struct{}{
	NotificationBookingCreated:      {},
	NotificationBookingConfirmed:    {},
	NotificationBookingRejected:     {},
	NotificationBookingCancelled:    {},
	NotificationReportSent:          {},
	NotificationBookingReminderDay:  {},
	NotificationBookingReminderHour: {},
	NotificationBookingTimeChanged:  {},
	NotificationChatMessage:         {},
	NotificationPaymentConfirmed:    {},
}

func (t NotificationType) Valid() bool {
	_, ok := notificationTypes[t]
	return ok
}

// OncePerBooking reports whether a booking can produce at most one
// notification of this type per recipient.
func (t NotificationType) OncePerBooking() bool {
	switch t {
	case NotificationBookingCreated, NotificationBookingConfirmed, NotificationBookingRejected, NotificationBookingCancelled:
		return true
	default:
		return false
	}
}

// Notification is an immutable record plus the reader's computed state.
// Identity for read/save tracking is (Type, ID).
type Notification struct {
	ID             int64            `json:"id"`
	Type           NotificationType `json:"type"`
	RecipientID    int64            `json:"recipient_id"`
	Title          string           `json:"title"`
	Body           string           `json:"message"`
	BookingID      *int64           `json:"booking_id,omitempty"`
	ConversationID *int64           `json:"conversation_id,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	IsRead         bool             `json:"is_read"`
	ReadAt         *time.Time       `json:"read_at,omitempty"`
	SavedAt        *time.Time       `json:"saved_at,omitempty"`
}

type NotificationKey struct {
	UserID int64
	Type   NotificationType
	ID     int64
}

type NotificationStatus struct {
	Type    NotificationType `json:"type"`
	ID      int64            `json:"id"`
	IsRead  bool             `json:"is_read"`
	ReadAt  *time.Time       `json:"read_at,omitempty"`
	SavedAt *time.Time       `json:"saved_at,omitempty"`
}
