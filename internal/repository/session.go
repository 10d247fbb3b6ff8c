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

type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	defer logger.DeferLogDuration("session.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at, revoked_at) VALUES ($1, $2, $3, $4, NULL)`,
		s.ID, s.UserID, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("sessionRepo.Create: %w", err)
	}
	return nil
}

// GetByID возвращает сессию только если она не отозвана и не истекла.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.Session, error) {
	defer logger.DeferLogDuration("session.GetByID", time.Now())()
	s := &model.Session{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, created_at, expires_at, revoked_at
		 FROM sessions WHERE id = $1 AND revoked_at IS NULL AND expires_at > NOW()`, id,
	).Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("sessionRepo.GetByID: %w", err)
	}
	return s, nil
}

// RevokeByID помечает сессию отозванной (revoked_at = NOW()). Запись в store вызывающий код удаляет отдельно.
func (r *SessionRepository) RevokeByID(ctx context.Context, sessionID string) (bool, error) {
	defer logger.DeferLogDuration("session.RevokeByID", time.Now())()
	tag, err := r.pool.Exec(ctx, `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, sessionID)
	if err != nil {
		return false, fmt.Errorf("sessionRepo.RevokeByID: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteExpired удаляет истёкшие и отозванные сессии старше before.
func (r *SessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	defer logger.DeferLogDuration("session.DeleteExpired", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)`, before)
	if err != nil {
		return 0, fmt.Errorf("sessionRepo.DeleteExpired: %w", err)
	}
	return tag.RowsAffected(), nil
}
