package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/garagedesk/internal/logger"
	"github.com/garagedesk/internal/model"
)

var ErrNotFound = errors.New("not found")

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func (r *ChatRepository) Create(ctx context.Context, c *model.Chat) error {
	defer logger.DeferLogDuration("chat.Create", time.Now())()
	var agentID, agentName, agentEmail *string
	if c.AssignedTo != nil {
		agentID, agentName, agentEmail = &c.AssignedTo.ID, &c.AssignedTo.Name, &c.AssignedTo.Email
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, customer_name, customer_email, customer_phone, session_id,
		                    assigned_to_id, assigned_to_name, assigned_to_email,
		                    status, priority, subject, category, last_activity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		c.ID, c.Customer.Name, c.Customer.Email, c.Customer.Phone, c.Customer.SessionID,
		agentID, agentName, agentEmail,
		c.Status, c.Priority, c.Subject, c.Category, c.LastActivity, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Create: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	var agentID, agentName, agentEmail *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, customer_name, COALESCE(customer_email,''), COALESCE(customer_phone,''), session_id,
		        assigned_to_id, assigned_to_name, assigned_to_email,
		        status, priority, subject, category, last_activity, created_at
		 FROM chats WHERE id = $1`, id,
	).Scan(&c.ID, &c.Customer.Name, &c.Customer.Email, &c.Customer.Phone, &c.Customer.SessionID,
		&agentID, &agentName, &agentEmail,
		&c.Status, &c.Priority, &c.Subject, &c.Category, &c.LastActivity, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	if agentID != nil {
		agent := model.Agent{ID: *agentID}
		if agentName != nil {
			agent.Name = *agentName
		}
		if agentEmail != nil {
			agent.Email = *agentEmail
		}
		c.AssignedTo = &agent
	}
	return c, nil
}

// Assign records the handling agent and bumps activity.
func (r *ChatRepository) Assign(ctx context.Context, chatID string, agent model.Agent, now time.Time) error {
	defer logger.DeferLogDuration("chat.Assign", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE chats SET assigned_to_id = $2, assigned_to_name = $3, assigned_to_email = $4, last_activity = $5
		 WHERE id = $1`,
		chatID, agent.ID, agent.Name, agent.Email, now,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.Assign: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus writes the new status. Transition validity is checked at the
// handler against the current record; here the WHERE clause only guards the
// row's existence.
func (r *ChatRepository) UpdateStatus(ctx context.Context, chatID string, status model.ChatStatus, now time.Time) error {
	defer logger.DeferLogDuration("chat.UpdateStatus", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE chats SET status = $2, last_activity = $3 WHERE id = $1`,
		chatID, status, now,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchActivity bumps last_activity after an accepted message.
func (r *ChatRepository) TouchActivity(ctx context.Context, chatID string, now time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE chats SET last_activity = $2 WHERE id = $1`, chatID, now,
	)
	if err != nil {
		return fmt.Errorf("chatRepo.TouchActivity: %w", err)
	}
	return nil
}
