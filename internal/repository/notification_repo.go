package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create stores the notification and reports whether a new row was written.
// Booking lifecycle notifications are unique per (booking, type, recipient);
// on a repeat the existing row is loaded into notification instead.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (type, recipient_id, title, body, booking_id, conversation_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id, type, recipient_id)
			WHERE booking_id IS NOT NULL
			  AND type IN ('booking_created', 'booking_confirmed', 'booking_rejected', 'booking_cancelled')
			DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRow(
		ctx,
		query,
		string(notification.Type),
		notification.RecipientID,
		notification.Title,
		notification.Body,
		notification.BookingID,
		notification.ConversationID,
	).Scan(&notification.ID, &notification.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	existing := `
		SELECT id, title, body, created_at
		FROM notifications
		WHERE booking_id = $1 AND type = $2 AND recipient_id = $3
	`
	err = r.db.QueryRow(ctx, existing, notification.BookingID, string(notification.Type), notification.RecipientID).
		Scan(&notification.ID, &notification.Title, &notification.Body, &notification.CreatedAt)
	return false, err
}

// visibleNotifications joins the caller's read and save state and hides
// notifications the caller dismissed. $1 is the recipient id.
const visibleNotifications = `
	FROM notifications n
	LEFT JOIN notification_read_states rs
	  ON rs.user_id = n.recipient_id
	 AND rs.notification_type = n.type
	 AND rs.notification_id = n.id
	LEFT JOIN notification_save_states ss
	  ON ss.user_id = n.recipient_id
	 AND ss.notification_type = n.type
	 AND ss.notification_id = n.id
	WHERE n.recipient_id = $1
	  AND NOT EXISTS (
		SELECT 1
		FROM notification_dismissals d
		WHERE d.user_id = n.recipient_id
		  AND d.notification_type = n.type
		  AND d.notification_id = n.id
	  )
`

// ListForUser returns the most recent notifications first. savedOnly limits
// the result to notifications the user saved, newest save first.
func (r *NotificationRepository) ListForUser(
	ctx context.Context,
	userID int64,
	limit int,
	savedOnly bool,
) ([]models.Notification, error) {
	query := `
		SELECT
			n.id,
			n.type,
			n.recipient_id,
			n.title,
			n.body,
			n.booking_id,
			n.conversation_id,
			n.created_at,
			COALESCE(rs.is_read, FALSE),
			rs.read_at,
			ss.saved_at
	` + visibleNotifications
	if savedOnly {
		query += ` AND ss.saved_at IS NOT NULL ORDER BY ss.saved_at DESC, n.id DESC`
	} else {
		query += ` ORDER BY n.created_at DESC, n.id DESC`
	}
	query += ` LIMIT $2`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0)
	for rows.Next() {
		var notification models.Notification
		var notificationType string
		if err := rows.Scan(
			&notification.ID,
			&notificationType,
			&notification.RecipientID,
			&notification.Title,
			&notification.Body,
			&notification.BookingID,
			&notification.ConversationID,
			&notification.CreatedAt,
			&notification.IsRead,
			&notification.ReadAt,
			&notification.SavedAt,
		); err != nil {
			return nil, err
		}
		notification.Type = models.NotificationType(notificationType)
		notifications = append(notifications, notification)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// CountUnread treats a missing read-state row as unread.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) `+visibleNotifications+` AND COALESCE(rs.is_read, FALSE) = FALSE`,
		userID,
	).Scan(&count)
	return count, err
}

func (r *NotificationRepository) CountSaved(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) `+visibleNotifications+` AND ss.saved_at IS NOT NULL`,
		userID,
	).Scan(&count)
	return count, err
}

func (r *NotificationRepository) ExistsForRecipient(
	ctx context.Context,
	userID int64,
	notificationType models.NotificationType,
	notificationID int64,
) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM notifications
			WHERE id = $1 AND type = $2 AND recipient_id = $3
		)
	`, notificationID, string(notificationType), userID).Scan(&exists)
	return exists, err
}
