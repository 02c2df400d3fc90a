package read

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/storage"
)

type MockUserProvider struct {
	mock.Mock
}

func (m *MockUserProvider) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserProvider) HasCurrentSubscription(ctx context.Context, userID int64) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestReadHandler(t *testing.T) {
	tests := []struct {
		name           string
		telegramID     string
		setupMock      func(*MockUserProvider)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:       "профиль с остатком бесплатных решений",
			telegramID: "100",
			setupMock: func(m *MockUserProvider) {
				m.On("GetUserByTelegramID", mock.Anything, int64(100)).
					Return(&models.User{ID: 1, TelegramID: 100, Username: "student", TrialsUsed: 2}, nil).Once()
				m.On("HasCurrentSubscription", mock.Anything, int64(1)).Return(false, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"trials_left":1`,
		},
		{
			name:       "профиль с подпиской",
			telegramID: "100",
			setupMock: func(m *MockUserProvider) {
				m.On("GetUserByTelegramID", mock.Anything, int64(100)).
					Return(&models.User{ID: 1, TelegramID: 100, TrialsUsed: 3}, nil).Once()
				m.On("HasCurrentSubscription", mock.Anything, int64(1)).Return(true, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"has_subscription":true`,
		},
		{
			name:           "некорректный telegram id",
			telegramID:     "abc",
			setupMock:      func(*MockUserProvider) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid telegram id`,
		},
		{
			name:       "пользователь не найден",
			telegramID: "999",
			setupMock: func(m *MockUserProvider) {
				m.On("GetUserByTelegramID", mock.Anything, int64(999)).
					Return(nil, fmt.Errorf("storage.GetUserByTelegramID: %w", storage.ErrUserNotFound)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockProvider := new(MockUserProvider)
			tt.setupMock(mockProvider)

			handler := New(newNoopLogger(), mockProvider, 3)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+tt.telegramID, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("telegram_id", tt.telegramID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockProvider.AssertExpectations(t)
		})
	}
}
