package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatCols = `id, participants, participant_data, last_message, last_message_time, created_at`

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanChat(s interface{ Scan(dest ...any) error }, c *model.Chat) error {
	return s.Scan(&c.ID, &c.Participants, &c.ParticipantData, &c.LastMessage, &c.LastMessageTime, &c.CreatedAt)
}

// CreateIfAbsent вставляет чат по каноническому id. created=false - чат уже существовал, c не изменён.
func (r *ChatRepository) CreateIfAbsent(ctx context.Context, c *model.Chat) (bool, error) {
	defer logger.DeferLogDuration("chat.CreateIfAbsent", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO chats (id, participants, participant_data, last_message, last_message_time, created_at)
		 VALUES ($1, $2, $3, '', NULL, $4) ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Participants, c.ParticipantData, c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("chatRepo.CreateIfAbsent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	defer logger.DeferLogDuration("chat.GetByID", time.Now())()
	c := &model.Chat{}
	err := scanChat(r.pool.QueryRow(ctx, `SELECT `+chatCols+` FROM chats WHERE id = $1`, id), c)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("chatRepo.GetByID: %w", err)
	}
	return c, nil
}

// ListByParticipant - чаты пользователя: свежие сверху, чаты без сообщений в конце.
func (r *ChatRepository) ListByParticipant(ctx context.Context, email string) ([]model.Chat, error) {
	defer logger.DeferLogDuration("chat.ListByParticipant", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+chatCols+` FROM chats WHERE $1 = ANY(participants)
		 ORDER BY last_message_time DESC NULLS LAST, created_at DESC, id`, email)
	if err != nil {
		return nil, fmt.Errorf("chatRepo.ListByParticipant: %w", err)
	}
	defer rows.Close()
	chats := make([]model.Chat, 0)
	for rows.Next() {
		var c model.Chat
		if err := scanChat(rows, &c); err != nil {
			return nil, fmt.Errorf("chatRepo.ListByParticipant scan: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chatRepo.ListByParticipant rows: %w", err)
	}
	return chats, nil
}

// DeleteCascade удаляет все сообщения чата и сам чат одной транзакцией.
func (r *ChatRepository) DeleteCascade(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("chat.DeleteCascade", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("chatRepo.DeleteCascade begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1`, id); err != nil {
		return fmt.Errorf("chatRepo.DeleteCascade messages: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("chatRepo.DeleteCascade chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("chatRepo.DeleteCascade commit: %w", err)
	}
	return nil
}
