package task

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetOrCreateUser(ctx context.Context, user models.User) (*models.User, error) {
	args := m.Called(ctx, user)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if res := args.Get(0); res != nil {
		return res.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CreateTask(ctx context.Context, task models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockRepository) CreateTaskConsumingTrial(ctx context.Context, task models.Task, trialLimit int) error {
	return m.Called(ctx, task, trialLimit).Error(0)
}

func (m *MockRepository) GetTask(ctx context.Context, id string) (*models.Task, error) {
	args := m.Called(ctx, id)
	if res := args.Get(0); res != nil {
		return res.(*models.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) ListTasksByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error) {
	args := m.Called(ctx, userID, limit, offset)
	if res := args.Get(0); res != nil {
		return res.([]*models.Task), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) FailTask(ctx context.Context, id, errorDetail string) error {
	return m.Called(ctx, id, errorDetail).Error(0)
}

type MockEntitlement struct {
	mock.Mock
}

func (m *MockEntitlement) Authorize(ctx context.Context, user *models.User) (bool, error) {
	args := m.Called(ctx, user)
	return args.Bool(0), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Enqueue(taskID string) error {
	return m.Called(taskID).Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) TaskReceived(user *models.User) {
	m.Called(user)
}

type MockMediaStore struct {
	mock.Mock
}

func (m *MockMediaStore) SaveTaskImage(taskID string, data []byte) (string, error) {
	args := m.Called(taskID, data)
	return args.String(0), args.Error(1)
}

// fakeCache хранит значения в памяти, чтобы не поднимать Redis в тестах.
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(key string, result any) (bool, error) {
	_, ok := c.data[key]
	return ok, nil
}

func (c *fakeCache) Set(key string, value any, expiration time.Duration) error {
	c.data[key] = nil
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestService_Submit(t *testing.T) {
	user := &models.User{ID: 1, TelegramID: 100, ChatID: 100}
	imageData := []byte("fake image")
	imageB64 := base64.StdEncoding.EncodeToString(imageData)

	tests := []struct {
		name          string
		req           models.DummyTask
		setupMocks    func(*MockRepository, *MockEntitlement, *MockDispatcher, *MockNotifier, *MockMediaStore)
		expectedError error
	}{
		{
			name: "текстовая задача по подписке",
			req:  models.DummyTask{TelegramID: 100, Description: "2+2"},
			setupMocks: func(r *MockRepository, e *MockEntitlement, d *MockDispatcher, n *MockNotifier, _ *MockMediaStore) {
				r.On("GetOrCreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user).Return(false, nil).Once()
				r.On("CreateTask", mock.Anything, mock.MatchedBy(func(task models.Task) bool {
					return task.UserID == 1 && task.Description == "2+2" &&
						task.Source == models.SourceText && task.ID != ""
				})).Return(nil).Once()
				d.On("Enqueue", mock.Anything).Return(nil).Once()
				n.On("TaskReceived", user).Once()
			},
		},
		{
			name: "задача с фото списывает пробное решение",
			req:  models.DummyTask{TelegramID: 100, Image: imageB64},
			setupMocks: func(r *MockRepository, e *MockEntitlement, d *MockDispatcher, n *MockNotifier, ms *MockMediaStore) {
				r.On("GetOrCreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user).Return(true, nil).Once()
				ms.On("SaveTaskImage", mock.Anything, imageData).Return("tasks/t1.jpg", nil).Once()
				r.On("CreateTaskConsumingTrial", mock.Anything, mock.MatchedBy(func(task models.Task) bool {
					return task.Source == models.SourceImage && task.ImagePath == "tasks/t1.jpg"
				}), 3).Return(nil).Once()
				d.On("Enqueue", mock.Anything).Return(nil).Once()
				n.On("TaskReceived", user).Once()
			},
		},
		{
			name:          "пустая заявка отклоняется без обращений к базе",
			req:           models.DummyTask{TelegramID: 100},
			setupMocks:    func(*MockRepository, *MockEntitlement, *MockDispatcher, *MockNotifier, *MockMediaStore) {},
			expectedError: ErrEmptyTask,
		},
		{
			name: "лимит исчерпан",
			req:  models.DummyTask{TelegramID: 100, Description: "2+2"},
			setupMocks: func(r *MockRepository, e *MockEntitlement, _ *MockDispatcher, _ *MockNotifier, _ *MockMediaStore) {
				r.On("GetOrCreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user).Return(false, entitlement.ErrTrialExhausted).Once()
			},
			expectedError: entitlement.ErrTrialExhausted,
		},
		{
			name: "ошибка постановки в очередь",
			req:  models.DummyTask{TelegramID: 100, Description: "2+2"},
			setupMocks: func(r *MockRepository, e *MockEntitlement, d *MockDispatcher, _ *MockNotifier, _ *MockMediaStore) {
				r.On("GetOrCreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
				e.On("Authorize", mock.Anything, user).Return(false, nil).Once()
				r.On("CreateTask", mock.Anything, mock.Anything).Return(nil).Once()
				d.On("Enqueue", mock.Anything).Return(errors.New("broker unavailable")).Once()
				r.On("FailTask", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectedError: errors.New("broker unavailable"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			ent := new(MockEntitlement)
			dispatcher := new(MockDispatcher)
			notifier := new(MockNotifier)
			media := new(MockMediaStore)
			tt.setupMocks(repo, ent, dispatcher, notifier, media)

			service := New(repo, ent, dispatcher, notifier, media, newFakeCache(), newNoopLogger(), 3)
			taskID, err := service.Submit(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError.Error())
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, taskID)
			}
			repo.AssertExpectations(t)
			ent.AssertExpectations(t)
			dispatcher.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestService_Submit_EnqueueFailureSettlesTask(t *testing.T) {
	repo := new(MockRepository)
	ent := new(MockEntitlement)
	dispatcher := new(MockDispatcher)
	notifier := new(MockNotifier)

	user := &models.User{ID: 1, TelegramID: 100, ChatID: 100}
	repo.On("GetOrCreateUser", mock.Anything, mock.Anything).Return(user, nil).Once()
	ent.On("Authorize", mock.Anything, user).Return(true, nil).Once()

	var taskID string
	repo.On("CreateTaskConsumingTrial", mock.Anything, mock.MatchedBy(func(task models.Task) bool {
		taskID = task.ID
		return true
	}), 3).Return(nil).Once()
	dispatcher.On("Enqueue", mock.Anything).Return(errors.New("broker unavailable")).Once()
	// Созданная, но не поставленная в очередь задача не остаётся в pending:
	// её никто не обработает, поэтому она сразу переводится в failed.
	repo.On("FailTask", mock.Anything, mock.MatchedBy(func(id string) bool {
		return id == taskID
	}), mock.MatchedBy(func(detail string) bool {
		return detail != ""
	})).Return(nil).Once()

	service := New(repo, ent, dispatcher, notifier, new(MockMediaStore), newFakeCache(), newNoopLogger(), 3)
	_, err := service.Submit(context.Background(), models.DummyTask{TelegramID: 100, Description: "2+2"})

	assert.Error(t, err)
	repo.AssertExpectations(t)
	notifier.AssertNotCalled(t, "TaskReceived", mock.Anything)
}

func TestService_Submit_ChatIDFallsBackToTelegramID(t *testing.T) {
	repo := new(MockRepository)
	ent := new(MockEntitlement)
	dispatcher := new(MockDispatcher)
	notifier := new(MockNotifier)

	user := &models.User{ID: 1, TelegramID: 100, ChatID: 100}
	repo.On("GetOrCreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.ChatID == 100
	})).Return(user, nil).Once()
	ent.On("Authorize", mock.Anything, user).Return(false, nil).Once()
	repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil).Once()
	dispatcher.On("Enqueue", mock.Anything).Return(nil).Once()
	notifier.On("TaskReceived", user).Once()

	service := New(repo, ent, dispatcher, notifier, new(MockMediaStore), newFakeCache(), newNoopLogger(), 3)
	_, err := service.Submit(context.Background(), models.DummyTask{TelegramID: 100, Description: "2+2"})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
