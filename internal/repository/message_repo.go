package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"messenger/internal/domain"
)

type MessageRepository interface {
	Create(ctx context.Context, message domain.Message) error
	// ListByConversation returns every message in timestamp order, id as
	// tiebreak. Deleted rows are included; their content was scrubbed to the
	// placeholder when the delete happened, so nothing sensitive leaks.
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
	LastVisible(ctx context.Context, conversationID string) (domain.Message, error)
	// SoftDelete marks the message deleted and scrubs its content, but only
	// when senderID owns it and the row is not already deleted. Anything else
	// is ErrNotFound.
	SoftDelete(ctx context.Context, messageID, senderID string) (domain.Message, error)
	// MarkRead flags all messages not sent by readerID as read. Idempotent.
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

type PgMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPgMessageRepository(pool *pgxpool.Pool) *PgMessageRepository {
	return &PgMessageRepository{pool: pool}
}

func (r *PgMessageRepository) Create(ctx context.Context, message domain.Message) error {
	const query = `
		INSERT INTO messages (id, conversation_id, sender_id, content, timestamp, is_read, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		message.ID,
		message.ConversationID,
		message.SenderID,
		message.Content,
		message.Timestamp,
		message.Read,
		message.Deleted,
	)
	return err
}

func (r *PgMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content,
		       m.timestamp, m.is_read, m.is_deleted
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1
		ORDER BY m.timestamp ASC, m.id ASC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		err = rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.SenderUsername,
			&msg.Content,
			&msg.Timestamp,
			&msg.Read,
			&msg.Deleted,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *PgMessageRepository) LastVisible(ctx context.Context, conversationID string) (domain.Message, error) {
	const query = `
		SELECT m.id, m.conversation_id, m.sender_id, u.username, m.content,
		       m.timestamp, m.is_read, m.is_deleted
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = $1 AND NOT m.is_deleted
		ORDER BY m.timestamp DESC, m.id DESC
		LIMIT 1
	`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, conversationID).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.SenderUsername,
		&msg.Content,
		&msg.Timestamp,
		&msg.Read,
		&msg.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

func (r *PgMessageRepository) SoftDelete(ctx context.Context, messageID, senderID string) (domain.Message, error) {
	const query = `
		UPDATE messages
		SET is_deleted = TRUE, content = $3
		WHERE id = $1 AND sender_id = $2 AND NOT is_deleted
		RETURNING id, conversation_id, sender_id, content, timestamp, is_read, is_deleted
	`
	var msg domain.Message
	err := r.pool.QueryRow(ctx, query, messageID, senderID, domain.DeletedPlaceholder).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.Timestamp,
		&msg.Read,
		&msg.Deleted,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

func (r *PgMessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) error {
	const query = `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND NOT is_read
	`
	_, err := r.pool.Exec(ctx, query, conversationID, readerID)
	return err
}
