package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Create(ctx context.Context, m *model.ChatMessage) error {
	defer logger.DeferLogDuration("msg.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, chat_id, sender_name, sender_email, content, message_type, is_read, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ChatID, m.Sender.Name, m.Sender.Email, m.Content, m.MessageType, m.IsRead, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.Create: %w", err)
	}
	return nil
}

// ListByChat returns up to limit messages, oldest first (append order).
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]model.ChatMessage, error) {
	defer logger.DeferLogDuration("msg.ListByChat", time.Now())()
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, chat_id, sender_name, COALESCE(sender_email,''), content, message_type, is_read, created_at
		 FROM chat_messages
		 WHERE chat_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2`, chatID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.ChatMessage, 0, limit)
	for rows.Next() {
		var m model.ChatMessage
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender.Name, &m.Sender.Email,
			&m.Content, &m.MessageType, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("msgRepo.ListByChat scan: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.ListByChat rows: %w", err)
	}
	return messages, nil
}

// MarkRead flags every message of a chat as read (agent opened the
// conversation).
func (r *MessageRepository) MarkRead(ctx context.Context, chatID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE chat_messages SET is_read = true WHERE chat_id = $1 AND is_read = false`, chatID,
	)
	if err != nil {
		return fmt.Errorf("msgRepo.MarkRead: %w", err)
	}
	return nil
}
