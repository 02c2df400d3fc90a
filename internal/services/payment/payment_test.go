package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/storage"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) UpsertSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	args := m.Called(ctx, sub)
	if res := args.Get(0); res != nil {
		return res.(*models.Subscription), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PaymentSucceeded(user *models.User) {
	m.Called(user)
}

func (m *MockNotifier) PaymentFailed(user *models.User, paymentID string) {
	m.Called(user, paymentID)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func testBilling() config.Billing {
	return config.Billing{
		TrialLimit:         3,
		SubscriptionPeriod: 720 * time.Hour,
		DefaultAmount:      290.00,
		DefaultCurrency:    "RUB",
	}
}

func TestService_Apply(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}

	tests := []struct {
		name          string
		event         Event
		setupMocks    func(*MockRepository, *MockNotifier)
		expectedError error
		expectApplied bool
	}{
		{
			name:  "успешный платёж создаёт подписку",
			event: Event{PaymentID: "pay-1", Status: "succeeded", Amount: 290, Currency: "RUB", TelegramID: 100},
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				r.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return sub.UserID == 1 && sub.PaymentID == "pay-1" &&
						sub.Status == models.SubscriptionActive && sub.Amount == 290
				})).Return(&models.Subscription{ID: 5, UserID: 1, PaymentID: "pay-1"}, nil).Once()
				n.On("PaymentSucceeded", user).Once()
			},
			expectApplied: true,
		},
		{
			name:  "повторная доставка того же платежа применяется без ошибки",
			event: Event{PaymentID: "pay-1", Status: "succeeded", Amount: 290, Currency: "RUB", TelegramID: 100},
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				// Upsert по ключу (user_id, payment_id) возвращает ту же строку.
				r.On("UpsertSubscription", mock.Anything, mock.Anything).
					Return(&models.Subscription{ID: 5, UserID: 1, PaymentID: "pay-1"}, nil).Once()
				n.On("PaymentSucceeded", user).Once()
			},
			expectApplied: true,
		},
		{
			name:  "неуспешный платёж не меняет подписку",
			event: Event{PaymentID: "pay-2", Status: "canceled", TelegramID: 100},
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				n.On("PaymentFailed", user, "pay-2").Once()
			},
			expectApplied: false,
		},
		{
			name:  "платёж без суммы получает сумму по умолчанию",
			event: Event{PaymentID: "pay-3", Status: "succeeded", TelegramID: 100},
			setupMocks: func(r *MockRepository, n *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				r.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return sub.Amount == 290.00 && sub.Currency == "RUB"
				})).Return(&models.Subscription{ID: 6, UserID: 1, PaymentID: "pay-3"}, nil).Once()
				n.On("PaymentSucceeded", user).Once()
			},
			expectApplied: true,
		},
		{
			name:  "событие для неизвестного пользователя",
			event: Event{PaymentID: "pay-4", Status: "succeeded", TelegramID: 999},
			setupMocks: func(r *MockRepository, _ *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(999)).
					Return(nil, storage.ErrUserNotFound).Once()
			},
			expectedError: ErrUnknownUser,
		},
		{
			name:  "ошибка хранилища при upsert",
			event: Event{PaymentID: "pay-5", Status: "succeeded", TelegramID: 100},
			setupMocks: func(r *MockRepository, _ *MockNotifier) {
				r.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
				r.On("UpsertSubscription", mock.Anything, mock.Anything).
					Return(nil, errors.New("db error")).Once()
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			notifier := new(MockNotifier)
			tt.setupMocks(repo, notifier)

			service := New(repo, notifier, newNoopLogger(), testBilling())
			sub, err := service.Apply(context.Background(), tt.event)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
				if tt.expectApplied {
					assert.NotNil(t, sub)
				} else {
					assert.Nil(t, sub)
				}
			}
			repo.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestService_Apply_SubscriptionPeriod(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100}
	repo := new(MockRepository)
	notifier := new(MockNotifier)

	repo.On("GetUserByTelegramID", mock.Anything, int64(100)).Return(user, nil).Once()
	repo.On("UpsertSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
		// Срок подписки отсчитывается от момента применения события.
		period := sub.EndDate.Sub(sub.StartDate)
		return period == 720*time.Hour
	})).Return(&models.Subscription{ID: 1}, nil).Once()
	notifier.On("PaymentSucceeded", user).Once()

	service := New(repo, notifier, newNoopLogger(), testBilling())
	_, err := service.Apply(context.Background(), Event{
		PaymentID: "pay-1", Status: "succeeded", TelegramID: 100,
	})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
