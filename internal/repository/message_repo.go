package repository

import (
	"context"
	"strconv"

	"github.com/saeid-a/bookingchat/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append bumps the conversation and inserts the message in one transaction.
// The UPDATE takes the conversation row lock, so concurrent appends to the
// same conversation commit one at a time and created_at follows commit order.
// A missing conversation yields pgx.ErrNoRows.
func (r *MessageRepository) Append(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	senderType string,
	body string,
) (*models.ChatMessage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var lockedID int64
	err = tx.QueryRow(ctx, `
		UPDATE conversations
		SET updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING id
	`, conversationID).Scan(&lockedID)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO messages (conversation_id, sender_id, sender_type, body, is_read)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id, conversation_id, sender_id, sender_type, body, is_read, created_at
	`

	var message models.ChatMessage
	err = tx.QueryRow(ctx, query, conversationID, senderID, senderType, body).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.SenderType,
		&message.Body,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &message, nil
}

// List returns messages in (created_at, id) order. A nil cursor starts at the
// beginning and a limit <= 0 returns everything after the cursor.
func (r *MessageRepository) List(
	ctx context.Context,
	conversationID int64,
	after *models.MessageCursor,
	limit int,
) ([]models.ChatMessage, error) {
	query := `
		SELECT id, conversation_id, sender_id, sender_type, body, is_read, created_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []any{conversationID}

	if after != nil {
		query += ` AND (created_at, id) > ($2, $3)`
		args = append(args, after.CreatedAt, after.ID)
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		args = append(args, limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.SenderType,
			&message.Body,
			&message.IsRead,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkConversationRead flags every inbound unread message for readerID and
// reports how many rows changed. A repeat call changes none.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) CountUnread(
	ctx context.Context,
	conversationID int64,
	viewerID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, viewerID).Scan(&count)
	return count, err
}

// CountUnreadForUser is the chat badge: inbound unread messages summed over
// every conversation the user participates in.
func (r *MessageRepository) CountUnreadForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversation_participants p
		  ON p.conversation_id = m.conversation_id AND p.user_id = $1
		WHERE m.sender_id <> $1
		  AND m.is_read = FALSE
	`, userID).Scan(&count)
	return count, err
}
