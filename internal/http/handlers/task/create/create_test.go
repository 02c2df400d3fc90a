package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
	tasksvc "github.com/zerotask/solver-bot/internal/services/task"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, req models.DummyTask) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestCreateHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное создание задачи",
			body: `{"telegram_id":100,"description":"2+2"}`,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, mock.MatchedBy(func(req models.DummyTask) bool {
					return req.TelegramID == 100 && req.Description == "2+2"
				})).Return("task-uuid-1", nil).Once()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"task_id":"task-uuid-1"`,
		},
		{
			name:           "битый JSON",
			body:           `{not json`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"status":"Error"`,
		},
		{
			name:           "нет telegram_id",
			body:           `{"description":"2+2"}`,
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `TelegramID`,
		},
		{
			name: "пустая задача",
			body: `{"telegram_id":100}`,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, mock.Anything).
					Return("", tasksvc.ErrEmptyTask).Once()
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `задача должна содержать текст или фото`,
		},
		{
			name: "лимит бесплатных решений исчерпан",
			body: `{"telegram_id":100,"description":"2+2"}`,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, mock.Anything).
					Return("", entitlement.ErrTrialExhausted).Once()
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `оформите подписку`,
		},
		{
			name: "внутренняя ошибка сервиса",
			body: `{"telegram_id":100,"description":"2+2"}`,
			setupMock: func(m *MockService) {
				m.On("Submit", mock.Anything, mock.Anything).
					Return("", errors.New("db error")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `could not create task`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(newNoopLogger(), mockService)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
