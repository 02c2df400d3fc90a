// Package entitlement решает, имеет ли пользователь право отправить
// новую задачу: действующая подписка даёт безлимит, иначе тратится
// бесплатное решение из пробного лимита.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zerotask/solver-bot/internal/models"
)

// ErrTrialExhausted возвращается, когда бесплатные решения закончились
// и действующей подписки нет. Пользователю в этом случае предлагается
// оформить подписку.
var ErrTrialExhausted = errors.New("trial exhausted and no active subscription")

// ErrNoActiveSubscription возвращается при попытке отключить
// автопродление без действующей подписки.
var ErrNoActiveSubscription = errors.New("no active subscription")

// SubscriptionRepository определяет методы хранилища, нужные для
// проверки права на решение.
type SubscriptionRepository interface {
	// HasCurrentSubscription сообщает о действующей подписке пользователя.
	HasCurrentSubscription(ctx context.Context, userID int64) (bool, error)
	// GetCurrentSubscription возвращает действующую подписку или nil.
	GetCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// SetAutoRenewal выставляет флаг автопродления.
	SetAutoRenewal(ctx context.Context, subscriptionID int64, autoRenewal bool) (int, error)
}

// Service реализует учёт права на отправку задач.
type Service struct {
	repo       SubscriptionRepository
	log        *slog.Logger
	trialLimit int
}

// New создает новый Service с лимитом бесплатных решений.
func New(repo SubscriptionRepository, log *slog.Logger, trialLimit int) *Service {
	return &Service{
		repo:       repo,
		log:        log,
		trialLimit: trialLimit,
	}
}

// Authorize проверяет право пользователя на новую задачу.
// Возвращает useTrial = true, если решение нужно списать из пробного
// лимита; само списание выполняется атомарно вместе с созданием задачи.
func (s *Service) Authorize(ctx context.Context, user *models.User) (useTrial bool, err error) {
	const op = "entitlement.Authorize"

	hasSubscription, err := s.repo.HasCurrentSubscription(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if hasSubscription {
		return false, nil
	}
	if user.TrialsLeft(s.trialLimit) > 0 {
		return true, nil
	}
	return false, fmt.Errorf("%s: %w", op, ErrTrialExhausted)
}

// TrialsLeft возвращает число оставшихся бесплатных решений.
func (s *Service) TrialsLeft(user *models.User) int {
	return user.TrialsLeft(s.trialLimit)
}

// CancelAutoRenewal отключает автопродление действующей подписки.
// Повторный вызов безопасен: флаг просто остаётся выключенным.
func (s *Service) CancelAutoRenewal(ctx context.Context, userID int64) error {
	const op = "entitlement.CancelAutoRenewal"

	sub, err := s.repo.GetCurrentSubscription(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub == nil {
		return fmt.Errorf("%s: %w", op, ErrNoActiveSubscription)
	}

	if _, err := s.repo.SetAutoRenewal(ctx, sub.ID, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("auto renewal cancelled", slog.Int64("subscription_id", sub.ID))
	return nil
}
