// Package payment применяет события оплаты к состоянию подписок.
// Отправитель webhook доставляет события как минимум один раз, поэтому
// применение обязано быть идемпотентным: ключом служит внешний ID
// платежа, повторное применение даёт тот же итог, что и однократное.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/metrics"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/storage"
)

// StatusSucceeded — исход платежа, создающий или продлевающий подписку.
const StatusSucceeded = "succeeded"

// ErrUnknownUser возвращается, когда событие ссылается на пользователя,
// которого нет в базе. Такое событие нельзя применить, и его повторная
// доставка бессмысленна: webhook отвечает 400.
var ErrUnknownUser = errors.New("unknown user in payment event")

// Event — событие оплаты, извлечённое из webhook.
type Event struct {
	PaymentID  string  // Внешний ID платежа (ключ идемпотентности)
	Status     string  // Исход платежа
	Amount     float64 // Сумма (0, если не передана)
	Currency   string  // Валюта (пустая, если не передана)
	TelegramID int64   // Telegram ID пользователя из metadata
}

// Repository определяет методы хранилища для применения события.
type Repository interface {
	// GetUserByTelegramID возвращает пользователя по Telegram ID.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	// UpsertSubscription атомарно создаёт или обновляет подписку
	// по ключу (user_id, payment_id).
	UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
}

// Notifier уведомляет пользователя об исходе оплаты.
type Notifier interface {
	PaymentSucceeded(user *models.User)
	PaymentFailed(user *models.User, paymentID string)
}

// Service применяет события оплаты.
type Service struct {
	repo     Repository
	notifier Notifier
	log      *slog.Logger
	billing  config.Billing
}

// New создает новый Service.
func New(repo Repository, notifier Notifier, log *slog.Logger, billing config.Billing) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		log:      log,
		billing:  billing,
	}
}

// Apply применяет событие оплаты. Для исхода succeeded создаётся или
// обновляется подписка на настроенный период; при любом другом исходе
// состояние не меняется, но пользователь получает уведомление о
// неуспешной оплате. Гонка повторных доставок с одним payment_id
// разрешается атомарным upsert в хранилище, а не ошибкой.
func (s *Service) Apply(ctx context.Context, event Event) (*models.Subscription, error) {
	const op = "payment.Apply"
	log := s.log.With(slog.String("op", op), slog.String("payment_id", event.PaymentID))

	user, err := s.repo.GetUserByTelegramID(ctx, event.TelegramID)
	if errors.Is(err, storage.ErrUserNotFound) {
		metrics.PaymentEvents.WithLabelValues("unknown_user").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownUser)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if event.Status != StatusSucceeded {
		log.Info("payment not succeeded, subscription state unchanged",
			slog.String("status", event.Status))
		metrics.PaymentEvents.WithLabelValues("failed").Inc()
		s.notifier.PaymentFailed(user, event.PaymentID)
		return nil, nil
	}

	amount := event.Amount
	if amount == 0 {
		amount = s.billing.DefaultAmount
	}
	currency := event.Currency
	if currency == "" {
		currency = s.billing.DefaultCurrency
	}

	now := time.Now()
	sub, err := s.repo.UpsertSubscription(ctx, models.Subscription{
		UserID:        user.ID,
		StartDate:     now,
		EndDate:       now.Add(s.billing.SubscriptionPeriod),
		Status:        models.SubscriptionActive,
		AutoRenewal:   true,
		PaymentID:     event.PaymentID,
		Amount:        amount,
		Currency:      currency,
		PaymentMethod: "yookassa",
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("subscription applied",
		slog.Int64("user_id", user.ID),
		slog.Time("end_date", sub.EndDate))
	metrics.PaymentEvents.WithLabelValues("succeeded").Inc()
	s.notifier.PaymentSucceeded(user)
	return sub, nil
}
