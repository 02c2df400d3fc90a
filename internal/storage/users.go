package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zerotask/solver-bot/internal/models"
)

// GetOrCreateUser возвращает пользователя по Telegram ID, создавая запись
// при первом обращении. Имя и chat_id обновляются данными из запроса.
func (s *Storage) GetOrCreateUser(ctx context.Context, user models.User) (*models.User, error) {
	const op = "storage.GetOrCreateUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (telegram_id, username, first_name, chat_id)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (telegram_id) DO UPDATE
			      SET username = EXCLUDED.username,
			          first_name = EXCLUDED.first_name,
			          chat_id = EXCLUDED.chat_id
			  RETURNING id, telegram_id, username, first_name, chat_id,
			      trials_used, is_active, registration_date`
	row := s.DB.QueryRowContext(ctx, query,
		user.TelegramID, user.Username, user.FirstName, user.ChatID)

	var result models.User
	if err := row.Scan(&result.ID, &result.TelegramID, &result.Username, &result.FirstName,
		&result.ChatID, &result.TrialsUsed, &result.IsActive, &result.RegistrationDate); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// GetUserByTelegramID возвращает пользователя по Telegram ID.
func (s *Storage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	const op = "storage.GetUserByTelegramID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, username, first_name, chat_id,
			      trials_used, is_active, registration_date
			  FROM users WHERE telegram_id = $1`
	row := s.DB.QueryRowContext(ctx, query, telegramID)

	var result models.User
	err := row.Scan(&result.ID, &result.TelegramID, &result.Username, &result.FirstName,
		&result.ChatID, &result.TrialsUsed, &result.IsActive, &result.RegistrationDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// GetUserByID возвращает пользователя по внутреннему идентификатору.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, telegram_id, username, first_name, chat_id,
			      trials_used, is_active, registration_date
			  FROM users WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.User
	err := row.Scan(&result.ID, &result.TelegramID, &result.Username, &result.FirstName,
		&result.ChatID, &result.TrialsUsed, &result.IsActive, &result.RegistrationDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// CountUsers возвращает общее число пользователей и число активных.
func (s *Storage) CountUsers(ctx context.Context) (total int, active int, err error) {
	const op = "storage.CountUsers"
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM users`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, active, nil
}
