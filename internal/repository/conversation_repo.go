package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messenger/internal/domain"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation domain.Conversation) error
	GetByID(ctx context.Context, id string) (domain.Conversation, error)
	// IsParticipant reports whether the conversation exists, is active, and
	// counts the user among its participants.
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	FindActiveBetween(ctx context.Context, userID, otherUserID string) (domain.Conversation, error)
	ListActiveByUser(ctx context.Context, userID string) ([]domain.Conversation, error)
	// SoftDelete flips the active flag. It reports ErrNotFound unless the
	// conversation is active and the requester is a participant.
	SoftDelete(ctx context.Context, conversationID, userID string) error
}

type PgConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPgConversationRepository(pool *pgxpool.Pool) *PgConversationRepository {
	return &PgConversationRepository{pool: pool}
}

func (r *PgConversationRepository) Create(ctx context.Context, conversation domain.Conversation) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insertConversation = `
		INSERT INTO conversations (id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = tx.Exec(ctx, insertConversation,
		conversation.ID,
		conversation.Active,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	if err != nil {
		return err
	}

	const insertParticipant = `
		INSERT INTO conversation_participants (conversation_id, user_id)
		VALUES ($1, $2)
	`
	for _, userID := range conversation.Participants {
		if _, err = tx.Exec(ctx, insertParticipant, conversation.ID, userID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PgConversationRepository) GetByID(ctx context.Context, id string) (domain.Conversation, error) {
	const query = `
		SELECT c.id, c.is_active, c.created_at, c.updated_at,
		       array_agg(p.user_id ORDER BY p.user_id)
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID,
		&conv.Active,
		&conv.CreatedAt,
		&conv.UpdatedAt,
		&conv.Participants,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	return conv, err
}

func (r *PgConversationRepository) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1
			FROM conversations c
			JOIN conversation_participants p ON p.conversation_id = c.id
			WHERE c.id = $1 AND c.is_active AND p.user_id = $2
		)
	`
	var ok bool
	err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(&ok)
	return ok, err
}

func (r *PgConversationRepository) FindActiveBetween(ctx context.Context, userID, otherUserID string) (domain.Conversation, error) {
	const query = `
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants a ON a.conversation_id = c.id AND a.user_id = $1
		JOIN conversation_participants b ON b.conversation_id = c.id AND b.user_id = $2
		WHERE c.is_active
		ORDER BY c.created_at
		LIMIT 1
	`
	var id string
	err := r.pool.QueryRow(ctx, query, userID, otherUserID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrNotFound
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PgConversationRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.Conversation, error) {
	const query = `
		SELECT c.id, c.is_active, c.created_at, c.updated_at,
		       array_agg(p.user_id ORDER BY p.user_id)
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE c.is_active
		  AND c.id IN (
			SELECT conversation_id FROM conversation_participants WHERE user_id = $1
		  )
		GROUP BY c.id
		ORDER BY c.updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		err = rows.Scan(&conv.ID, &conv.Active, &conv.CreatedAt, &conv.UpdatedAt, &conv.Participants)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

func (r *PgConversationRepository) SoftDelete(ctx context.Context, conversationID, userID string) error {
	const query = `
		UPDATE conversations
		SET is_active = FALSE, updated_at = now()
		WHERE id = $1
		  AND is_active
		  AND EXISTS (
			SELECT 1 FROM conversation_participants
			WHERE conversation_id = $1 AND user_id = $2
		  )
	`
	tag, err := r.pool.Exec(ctx, query, conversationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
