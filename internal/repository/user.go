package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userCols = `id, username, email, password_hash, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// scanUser сканирует строку в model.User (порядок соответствует userCols).
func scanUser(s interface{ Scan(dest ...any) error }, u *model.User) error {
	return s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
}

// CreateWithUsername атомарно занимает имя в индексе usernames и создаёт пользователя.
// Имя занято - ErrUsernameTaken, email занят - ErrEmailTaken; в обоих случаях ничего не записано.
func (r *UserRepository) CreateWithUsername(ctx context.Context, u *model.User) error {
	defer logger.DeferLogDuration("user.CreateWithUsername", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("userRepo.CreateWithUsername begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`INSERT INTO usernames (name, uid, created_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`,
		strings.ToLower(u.Username), u.ID, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("userRepo.CreateWithUsername usernames: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUsernameTaken
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("userRepo.CreateWithUsername users: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("userRepo.CreateWithUsername commit: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	defer logger.DeferLogDuration("user.GetByEmail", time.Now())()
	u := &model.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email)
	if err := scanUser(row, u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}
	return u, nil
}

// GetUsername ищет запись индекса по имени (без учёта регистра).
func (r *UserRepository) GetUsername(ctx context.Context, name string) (*model.UsernameEntry, error) {
	defer logger.DeferLogDuration("user.GetUsername", time.Now())()
	e := &model.UsernameEntry{}
	err := r.pool.QueryRow(ctx,
		`SELECT name, uid, created_at FROM usernames WHERE name = $1`, strings.ToLower(name),
	).Scan(&e.Name, &e.UID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetUsername: %w", err)
	}
	return e, nil
}
