package list

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

type MockService struct {
	mock.Mock
}

func (m *MockService) ListByUser(ctx context.Context, telegramID int64, limit, offset int) ([]*models.Task, error) {
	args := m.Called(ctx, telegramID, limit, offset)
	if res := args.Get(0); res != nil {
		return res.([]*models.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestListHandler(t *testing.T) {
	tests := []struct {
		name           string
		telegramID     string
		query          string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:       "лимит по умолчанию",
			telegramID: "100",
			setupMock: func(m *MockService) {
				m.On("ListByUser", mock.Anything, int64(100), 20, 0).
					Return([]*models.Task{{ID: "task-1", Status: models.TaskCompleted}}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:       "лимит и смещение из запроса",
			telegramID: "100",
			query:      "?limit=5&offset=10",
			setupMock: func(m *MockService) {
				m.On("ListByUser", mock.Anything, int64(100), 5, 10).
					Return([]*models.Task{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:       "чрезмерный лимит ограничивается",
			telegramID: "100",
			query:      "?limit=1000000",
			setupMock: func(m *MockService) {
				m.On("ListByUser", mock.Anything, int64(100), 100, 0).
					Return([]*models.Task{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "некорректный telegram id",
			telegramID:     "abc",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `invalid telegram id`,
		},
		{
			name:       "пользователь не найден",
			telegramID: "999",
			setupMock: func(m *MockService) {
				m.On("ListByUser", mock.Anything, int64(999), 20, 0).
					Return(nil, fmt.Errorf("storage.GetUserByTelegramID: %w", storage.ErrUserNotFound)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `user not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+tt.telegramID+"/tasks"+tt.query, nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("telegram_id", tt.telegramID)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
