package repository

import (
	"context"

	"github.com/saeid-a/bookingchat/internal/models"
)

// ReadStateRepository owns the per-user read, save and dismissal rows keyed by
// (user_id, notification_type, notification_id). Every write is a single
// upsert or delete so concurrent callers never leave a partial row.
type ReadStateRepository struct {
	db DBTX
}

func NewReadStateRepository(db DBTX) *ReadStateRepository {
	return &ReadStateRepository{db: db}
}

// SetRead upserts the read flag. read_at keeps its first value while the row
// stays read and is cleared when it flips back to unread.
func (r *ReadStateRepository) SetRead(ctx context.Context, key models.NotificationKey, read bool) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_read_states (user_id, notification_type, notification_id, is_read, read_at)
		VALUES ($1, $2, $3, $4::boolean, CASE WHEN $4::boolean THEN NOW() END)
		ON CONFLICT (user_id, notification_type, notification_id)
		DO UPDATE SET
			is_read = EXCLUDED.is_read,
			read_at = CASE
				WHEN NOT EXCLUDED.is_read THEN NULL
				WHEN notification_read_states.is_read THEN notification_read_states.read_at
				ELSE EXCLUDED.read_at
			END
	`, key.UserID, string(key.Type), key.ID, read)
	return err
}

func (r *ReadStateRepository) Save(ctx context.Context, key models.NotificationKey) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO notification_save_states (user_id, notification_type, notification_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, notification_type, notification_id) DO NOTHING
	`, key.UserID, string(key.Type), key.ID)
	return err
}

func (r *ReadStateRepository) Unsave(ctx context.Context, key models.NotificationKey) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM notification_save_states
		WHERE user_id = $1 AND notification_type = $2 AND notification_id = $3
	`, key.UserID, string(key.Type), key.ID)
	return err
}

// Dismiss hides the notification from the user's feed and drops their read
// and save rows. The notification itself is left in place.
func (r *ReadStateRepository) Dismiss(ctx context.Context, key models.NotificationKey) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	args := []any{key.UserID, string(key.Type), key.ID}

	if _, err := tx.Exec(ctx, `
		INSERT INTO notification_dismissals (user_id, notification_type, notification_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, notification_type, notification_id) DO NOTHING
	`, args...); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM notification_read_states
		WHERE user_id = $1 AND notification_type = $2 AND notification_id = $3
	`, args...); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM notification_save_states
		WHERE user_id = $1 AND notification_type = $2 AND notification_id = $3
	`, args...); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// StatusBatch returns one status per requested id, in request order. Ids
// without rows come back unread and unsaved.
func (r *ReadStateRepository) StatusBatch(
	ctx context.Context,
	userID int64,
	notificationType models.NotificationType,
	ids []int64,
) ([]models.NotificationStatus, error) {
	if len(ids) == 0 {
		return []models.NotificationStatus{}, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT x.id, COALESCE(rs.is_read, FALSE), rs.read_at, ss.saved_at
		FROM unnest($3::bigint[]) WITH ORDINALITY AS x(id, ord)
		LEFT JOIN notification_read_states rs
		  ON rs.user_id = $1 AND rs.notification_type = $2 AND rs.notification_id = x.id
		LEFT JOIN notification_save_states ss
		  ON ss.user_id = $1 AND ss.notification_type = $2 AND ss.notification_id = x.id
		ORDER BY x.ord
	`, userID, string(notificationType), ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make([]models.NotificationStatus, 0, len(ids))
	for rows.Next() {
		status := models.NotificationStatus{Type: notificationType}
		if err := rows.Scan(&status.ID, &status.IsRead, &status.ReadAt, &status.SavedAt); err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return statuses, nil
}

// MarkConversationNotificationsRead marks the user's chat_message
// notifications for one conversation as read, so the notification center
// agrees with the chat badge after a conversation is read.
func (r *ReadStateRepository) MarkConversationNotificationsRead(
	ctx context.Context,
	userID int64,
	conversationID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO notification_read_states (user_id, notification_type, notification_id, is_read, read_at)
		SELECT n.recipient_id, n.type, n.id, TRUE, NOW()
		FROM notifications n
		WHERE n.recipient_id = $1
		  AND n.conversation_id = $2
		  AND n.type = 'chat_message'
		ON CONFLICT (user_id, notification_type, notification_id)
		DO UPDATE SET is_read = TRUE, read_at = EXCLUDED.read_at
		WHERE notification_read_states.is_read = FALSE
	`, userID, conversationID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
