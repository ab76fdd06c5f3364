package models

import "time"

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusRejected  = "rejected"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
)

var bookingStatuses = map[string]struct{}{
	BookingStatusPending:   {},
	BookingStatusConfirmed: {},
	BookingStatusRejected:  {},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

func ValidBookingStatus(status string) bool {
	_, ok := bookingStatuses[status]
	return ok
}

// ChatEligible reports whether participants may send messages while a
// booking is in status.
func ChatEligible(status string) bool {
	return status == BookingStatusConfirmed
}

// Booking is the read-only view of the marketplace booking row.
type Booking struct {
	ID          int64      `json:"id"`
	ClientID    int64      `json:"client_id"`
	ProviderID  int64      `json:"provider_id"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Role returns the participant type of userID on this booking.
func (b *Booking) Role(userID int64) (string, bool) {
	switch userID {
	case b.ClientID:
		return UserTypeClient, true
	case b.ProviderID:
		return UserTypeProvider, true
	default:
		return "", false
	}
}
