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

const messageCols = `id, chat_id, text, user_email, timestamp, read, edited, edited_at`

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func scanMessage(s interface{ Scan(dest ...any) error }, m *model.Message) error {
	return s.Scan(&m.ID, &m.ChatID, &m.Text, &m.User, &m.Timestamp, &m.Read, &m.Edited, &m.EditedAt)
}

// Append вставляет сообщение и обновляет сводку чата (last_message, last_message_time) одной транзакцией.
func (r *MessageRepository) Append(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("message.Append", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("messageRepo.Append begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (`+messageCols+`) VALUES ($1, $2, $3, $4, $5, FALSE, FALSE, NULL)`,
		m.ID, m.ChatID, m.Text, m.User, m.Timestamp,
	)
	if isForeignKeyViolation(err) {
		// чат удалён между проверкой участия и вставкой
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("messageRepo.Append insert: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE chats SET last_message = $1, last_message_time = $2 WHERE id = $3`,
		m.Text, m.Timestamp, m.ChatID,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.Append summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("messageRepo.Append commit: %w", err)
	}
	return nil
}

// ListByChat возвращает сообщения чата по возрастанию времени.
func (r *MessageRepository) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	defer logger.DeferLogDuration("message.ListByChat", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageCols+` FROM messages WHERE chat_id = $1 ORDER BY timestamp ASC, id ASC`, chatID)
	if err != nil {
		return nil, fmt.Errorf("messageRepo.ListByChat: %w", err)
	}
	defer rows.Close()
	msgs := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, fmt.Errorf("messageRepo.ListByChat scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("messageRepo.ListByChat rows: %w", err)
	}
	return msgs, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, chatID, id string) (*model.Message, error) {
	defer logger.DeferLogDuration("message.GetByID", time.Now())()
	m := &model.Message{}
	err := scanMessage(r.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM messages WHERE chat_id = $1 AND id = $2`, chatID, id), m)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("messageRepo.GetByID: %w", err)
	}
	return m, nil
}

// UpdateText меняет текст и ставит edited; если сообщение последнее в чате, сводка чата следует за ним.
func (r *MessageRepository) UpdateText(ctx context.Context, chatID, id, text string, editedAt time.Time) error {
	defer logger.DeferLogDuration("message.UpdateText", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("messageRepo.UpdateText begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE messages SET text = $1, edited = TRUE, edited_at = $2 WHERE chat_id = $3 AND id = $4`,
		text, editedAt, chatID, id,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.UpdateText: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx,
		`UPDATE chats SET last_message = $1 WHERE id = $2 AND $3 = (
		   SELECT id FROM messages WHERE chat_id = $2 ORDER BY timestamp DESC, id DESC LIMIT 1)`,
		text, chatID, id,
	)
	if err != nil {
		return fmt.Errorf("messageRepo.UpdateText summary: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("messageRepo.UpdateText commit: %w", err)
	}
	return nil
}

// Delete удаляет сообщение и пересчитывает сводку чата по самому свежему оставшемуся (или очищает её).
func (r *MessageRepository) Delete(ctx context.Context, chatID, id string) error {
	defer logger.DeferLogDuration("message.Delete", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("messageRepo.Delete begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE chat_id = $1 AND id = $2`, chatID, id)
	if err != nil {
		return fmt.Errorf("messageRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = tx.Exec(ctx,
		`UPDATE chats SET
		   last_message = COALESCE((SELECT text FROM messages WHERE chat_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1), ''),
		   last_message_time = (SELECT timestamp FROM messages WHERE chat_id = $1 ORDER BY timestamp DESC, id DESC LIMIT 1)
		 WHERE id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("messageRepo.Delete summary: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("messageRepo.Delete commit: %w", err)
	}
	return nil
}

// MarkRead ставит read=true на непрочитанные сообщения чата, автор которых не viewer.
// Сообщения самого viewer'а не трогаются. Возвращает число изменённых строк.
func (r *MessageRepository) MarkRead(ctx context.Context, chatID, viewer string) (int64, error) {
	defer logger.DeferLogDuration("message.MarkRead", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE messages SET read = TRUE WHERE chat_id = $1 AND user_email <> $2 AND read = FALSE`,
		chatID, viewer,
	)
	if err != nil {
		return 0, fmt.Errorf("messageRepo.MarkRead: %w", err)
	}
	return tag.RowsAffected(), nil
}
