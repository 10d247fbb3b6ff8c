package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken - имя уже занято в индексе usernames.
	ErrUsernameTaken = errors.New("username taken")
	// ErrEmailTaken - email уже зарегистрирован.
	ErrEmailTaken = errors.New("email already in use")
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// isForeignKeyViolation - ссылка на несуществующую строку (например, чат удалён).
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// isUniqueViolation - нарушение UNIQUE/PK (опционально по имени ограничения).
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
