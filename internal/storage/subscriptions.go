package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zerotask/solver-bot/internal/models"
)

// UpsertSubscription атомарно создаёт или обновляет подписку по ключу
// (user_id, payment_id). Повторная доставка webhook с тем же payment_id
// не создаёт вторую строку: уникальный индекс переводит вставку в
// обновление, и действуют даты из более позднего применения.
func (s *Storage) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions
			      (user_id, start_date, end_date, status, auto_renewal,
			       payment_id, amount, currency, payment_method)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (user_id, payment_id) DO UPDATE
			      SET status = EXCLUDED.status,
			          start_date = EXCLUDED.start_date,
			          end_date = EXCLUDED.end_date,
			          amount = EXCLUDED.amount,
			          currency = EXCLUDED.currency
			  RETURNING id, user_id, start_date, end_date, status, auto_renewal,
			      payment_id, amount, currency, payment_method, created_at`
	row := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.StartDate, sub.EndDate, sub.Status, sub.AutoRenewal,
		sub.PaymentID, sub.Amount, sub.Currency, sub.PaymentMethod)

	var result models.Subscription
	if err := row.Scan(&result.ID, &result.UserID, &result.StartDate, &result.EndDate,
		&result.Status, &result.AutoRenewal, &result.PaymentID, &result.Amount,
		&result.Currency, &result.PaymentMethod, &result.CreatedAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// GetCurrentSubscription возвращает действующую подписку пользователя
// или nil, если её нет. Право на безлимит каждый раз вычисляется заново
// по статусу и дате окончания.
func (s *Storage) GetCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.GetCurrentSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, start_date, end_date, status, auto_renewal,
			      payment_id, amount, currency, payment_method, created_at
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2 AND end_date > now()
			  ORDER BY end_date DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userID, models.SubscriptionActive)

	var result models.Subscription
	err := row.Scan(&result.ID, &result.UserID, &result.StartDate, &result.EndDate,
		&result.Status, &result.AutoRenewal, &result.PaymentID, &result.Amount,
		&result.Currency, &result.PaymentMethod, &result.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// HasCurrentSubscription сообщает, есть ли у пользователя действующая подписка.
func (s *Storage) HasCurrentSubscription(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.HasCurrentSubscription"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS(
			      SELECT 1 FROM subscriptions
			      WHERE user_id = $1 AND status = $2 AND end_date > now())`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userID, models.SubscriptionActive).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// SetAutoRenewal выставляет флаг автопродления подписки и возвращает
// количество изменённых строк. Повторный вызов с тем же значением
// безопасен.
func (s *Storage) SetAutoRenewal(ctx context.Context, subscriptionID int64, autoRenewal bool) (int, error) {
	const op = "storage.SetAutoRenewal"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET auto_renewal = $2 WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, subscriptionID, autoRenewal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CountSubscriptions возвращает общее число подписок и число активных.
func (s *Storage) CountSubscriptions(ctx context.Context) (total int, active int, err error) {
	const op = "storage.CountSubscriptions"
	select {
	case <-ctx.Done():
		return 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1 AND end_date > now())
			  FROM subscriptions`
	if err := s.DB.QueryRowContext(ctx, query, models.SubscriptionActive).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, active, nil
}
