package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/saeid-a/bookingchat/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindByPair looks the conversation up through its two participant rows.
func (r *ConversationRepository) FindByPair(
	ctx context.Context,
	clientID int64,
	providerID int64,
) (*models.Conversation, error) {
	query := `
		SELECT c.id, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_participants pc
		  ON pc.conversation_id = c.id AND pc.user_id = $1 AND pc.user_type = 'client'
		JOIN conversation_participants pp
		  ON pp.conversation_id = c.id AND pp.user_id = $2 AND pp.user_type = 'provider'
		ORDER BY c.id
		LIMIT 1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, clientID, providerID).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	participants, err := r.ListParticipants(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	conversation.Participants = participants

	return &conversation, nil
}

// GetOrCreateForPair returns the single conversation for the pair, creating
// it with both participant rows when none exists. Concurrent callers for the
// same pair serialize on a transaction-scoped advisory lock.
func (r *ConversationRepository) GetOrCreateForPair(
	ctx context.Context,
	clientID int64,
	providerID int64,
) (*models.Conversation, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	lockKey := fmt.Sprintf("conversation:%d:%d", clientID, providerID)
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", lockKey); err != nil {
		return nil, false, err
	}

	txRepo := NewConversationRepository(tx)
	existing, err := txRepo.FindByPair(ctx, clientID, providerID)
	if err == nil {
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	var conversation models.Conversation
	err = tx.QueryRow(ctx, `
		INSERT INTO conversations DEFAULT VALUES
		RETURNING id, created_at, updated_at
	`).Scan(&conversation.ID, &conversation.CreatedAt, &conversation.UpdatedAt)
	if err != nil {
		return nil, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, user_type)
		VALUES ($1, $2, 'client'), ($1, $3, 'provider')
	`, conversation.ID, clientID, providerID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}

	conversation.Participants = []models.Participant{
		{ConversationID: conversation.ID, UserID: clientID, UserType: models.UserTypeClient},
		{ConversationID: conversation.ID, UserID: providerID, UserType: models.UserTypeProvider},
	}
	return &conversation, true, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	participants, err := r.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	conversation.Participants = participants

	return &conversation, nil
}

func (r *ConversationRepository) ListParticipants(
	ctx context.Context,
	conversationID int64,
) ([]models.Participant, error) {
	rows, err := r.db.Query(ctx, `
		SELECT conversation_id, user_id, user_type
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY user_type
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.Participant, 0, 2)
	for rows.Next() {
		var participant models.Participant
		if err := rows.Scan(&participant.ConversationID, &participant.UserID, &participant.UserType); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return participants, nil
}

func (r *ConversationRepository) ListForUser(
	ctx context.Context,
	userID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.created_at,
			c.updated_at,
			me.user_type,
			other.user_id,
			other.user_type,
			COALESCE(u.display_name, ''),
			lm.id,
			lm.sender_id,
			lm.sender_type,
			lm.body,
			lm.is_read,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversation_participants me
		JOIN conversations c ON c.id = me.conversation_id
		JOIN conversation_participants other
		  ON other.conversation_id = c.id AND other.user_id <> me.user_id
		LEFT JOIN users u ON u.id = other.user_id
		LEFT JOIN LATERAL (
			SELECT id, sender_id, sender_type, body, is_read, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND is_read = FALSE
		) uc ON TRUE
		WHERE me.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var myType string
		var messageID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageSenderType sql.NullString
		var messageBody sql.NullString
		var messageIsRead sql.NullBool
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&myType,
			&summary.OtherParticipant.UserID,
			&summary.OtherParticipant.UserType,
			&summary.OtherName,
			&messageID,
			&messageSenderID,
			&messageSenderType,
			&messageBody,
			&messageIsRead,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summary.OtherParticipant.ConversationID = summary.ID
		summary.Participants = []models.Participant{
			{ConversationID: summary.ID, UserID: userID, UserType: myType},
			summary.OtherParticipant,
		}

		if messageID.Valid {
			summary.LastMessage = &models.ChatMessage{
				ID:             messageID.Int64,
				ConversationID: summary.ID,
				SenderID:       messageSenderID.Int64,
				SenderType:     messageSenderType.String,
				Body:           messageBody.String,
				IsRead:         messageIsRead.Bool,
				CreatedAt:      messageCreatedAt.Time,
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// Delete removes the conversation; participants and messages go with it
// through ON DELETE CASCADE.
// Delete removes the conversation and dismisses its chat_message
// notifications for both participants in the same statement.
func (r *ConversationRepository) Delete(ctx context.Context, conversationID int64) (bool, error) {
	query := `
		WITH dismissed AS (
			INSERT INTO notification_dismissals (user_id, notification_type, notification_id)
			SELECT n.recipient_id, n.type, n.id
			FROM notifications n
			WHERE n.conversation_id = $1
			  AND n.type = 'chat_message'
			  AND EXISTS (SELECT 1 FROM conversations c WHERE c.id = $1)
			ON CONFLICT DO NOTHING
		)
		DELETE FROM conversations WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, conversationID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
