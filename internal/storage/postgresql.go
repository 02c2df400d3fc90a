// Package storage реализует хранилище данных на основе PostgreSQL
// для пользователей, подписок и задач. Предоставляет методы создания,
// чтения и изменения записей, включая две атомарные операции:
// списание пробного решения вместе с созданием задачи и upsert подписки
// по ключу (user_id, payment_id).
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrTrialExhausted возвращается, когда у пользователя не осталось
// бесплатных решений и нет активной подписки.
var ErrTrialExhausted = errors.New("trial limit exhausted")

// ErrUserNotFound возвращается, когда пользователь с указанным
// Telegram ID отсутствует в базе.
var ErrUserNotFound = errors.New("user not found")

// ErrTaskNotFound возвращается, когда задача с указанным ID отсутствует.
var ErrTaskNotFound = errors.New("task not found")

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'tasks'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table tasks missing or query error: %w", err)
	}
	return nil
}
