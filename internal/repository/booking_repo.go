package repository

import (
	"context"

	"github.com/saeid-a/bookingchat/internal/models"
)

// BookingRepository reads bookings owned by the marketplace CRUD system.
// This subsystem never writes to the table.
type BookingRepository struct {
	db DBTX
}

func NewBookingRepository(db DBTX) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) GetByID(ctx context.Context, bookingID int64) (*models.Booking, error) {
	query := `
		SELECT id, client_id, provider_id, status, scheduled_at, created_at, updated_at
		FROM bookings
		WHERE id = $1
	`

	var booking models.Booking
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&booking.ID,
		&booking.ClientID,
		&booking.ProviderID,
		&booking.Status,
		&booking.ScheduledAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *BookingRepository) HasBookingWithStatus(
	ctx context.Context,
	clientID int64,
	providerID int64,
	status string,
) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM bookings
			WHERE client_id = $1
			  AND provider_id = $2
			  AND status = $3
		)
	`, clientID, providerID, status).Scan(&exists)
	return exists, err
}
