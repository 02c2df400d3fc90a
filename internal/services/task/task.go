// Package task реализует приём задач: регистрация пользователя,
// проверка права на решение, сохранение фото, создание записи и
// постановка в очередь конвейера. Запрос возвращается сразу после
// постановки в очередь, сама обработка идёт в фоне.
package task

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/models"
)

// ErrEmptyTask возвращается для заявки без текста и без фото.
var ErrEmptyTask = errors.New("task has no description and no image")

// Repository определяет методы хранилища для приёма и чтения задач.
type Repository interface {
	GetOrCreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	CreateTask(ctx context.Context, task models.Task) error
	// CreateTaskConsumingTrial атомарно списывает пробное решение и
	// создаёт задачу: либо происходит и то и другое, либо ничего.
	CreateTaskConsumingTrial(ctx context.Context, task models.Task, trialLimit int) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasksByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error)
	FailTask(ctx context.Context, id, errorDetail string) error
}

// Entitlement решает, можно ли пользователю отправить новую задачу.
type Entitlement interface {
	Authorize(ctx context.Context, user *models.User) (useTrial bool, err error)
}

// Dispatcher ставит задачу в очередь конвейера.
type Dispatcher interface {
	Enqueue(taskID string) error
}

// Notifier сообщает пользователю о приёме задачи.
type Notifier interface {
	TaskReceived(user *models.User)
}

// MediaStore сохраняет фото условия задачи.
type MediaStore interface {
	SaveTaskImage(taskID string, data []byte) (string, error)
}

// Cache описывает методы кэширования задач.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Service реализует приём и чтение задач.
type Service struct {
	repo        Repository
	entitlement Entitlement
	dispatcher  Dispatcher
	notifier    Notifier
	media       MediaStore
	cache       Cache
	log         *slog.Logger
	trialLimit  int
}

// New создает новый Service.
func New(repo Repository, entitlement Entitlement, dispatcher Dispatcher,
	notifier Notifier, media MediaStore, cache Cache, log *slog.Logger, trialLimit int) *Service {
	return &Service{
		repo:        repo,
		entitlement: entitlement,
		dispatcher:  dispatcher,
		notifier:    notifier,
		media:       media,
		cache:       cache,
		log:         log,
		trialLimit:  trialLimit,
	}
}

// Submit принимает заявку, создаёт задачу в статусе pending и ставит её
// в очередь. Возвращает ID созданной задачи.
func (s *Service) Submit(ctx context.Context, req models.DummyTask) (string, error) {
	const op = "task.Submit"
	log := s.log.With(slog.String("op", op), slog.Int64("telegram_id", req.TelegramID))

	if req.Description == "" && req.Image == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyTask)
	}

	chatID := req.ChatID
	if chatID == 0 {
		chatID = req.TelegramID
	}
	user, err := s.repo.GetOrCreateUser(ctx, models.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		ChatID:     chatID,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	useTrial, err := s.entitlement.Authorize(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	newTask := models.Task{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Description: req.Description,
		Source:      models.SourceText,
	}

	if req.Image != "" {
		imageBytes, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return "", fmt.Errorf("%s: decode image: %w", op, err)
		}
		path, err := s.media.SaveTaskImage(newTask.ID, imageBytes)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		newTask.ImagePath = path
		newTask.Source = models.SourceImage
	}

	// Списание пробного решения и создание задачи — одна транзакция.
	if useTrial {
		err = s.repo.CreateTaskConsumingTrial(ctx, newTask, s.trialLimit)
	} else {
		err = s.repo.CreateTask(ctx, newTask)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.dispatcher.Enqueue(newTask.ID); err != nil {
		// Задача уже записана, но без сообщения в очереди её никто не
		// обработает. Переводим в failed, чтобы запись не висела в
		// pending навсегда.
		if failErr := s.repo.FailTask(ctx, newTask.ID, "enqueue: "+err.Error()); failErr != nil {
			log.Error("failed to settle unqueued task", sl.Err(failErr))
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	log.Info("task submitted", slog.String("task_id", newTask.ID), slog.String("source", newTask.Source))

	s.notifier.TaskReceived(user)
	return newTask.ID, nil
}

// Get возвращает задачу по ID, используя кеш или хранилище.
// Мини-приложение опрашивает статус задачи, поэтому горячие чтения
// держатся в кеше и инвалидируются воркером при смене статуса.
func (s *Service) Get(ctx context.Context, id string) (*models.Task, error) {
	var cached models.Task
	cacheKey := "task:" + id
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("task cache read failed", slog.String("key", cacheKey), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	result, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(cacheKey, result, time.Minute); err != nil {
		s.log.Warn("failed to cache task", slog.String("key", cacheKey), sl.Err(err))
	}
	return result, nil
}

// ListByUser возвращает задачи пользователя по его Telegram ID.
func (s *Service) ListByUser(ctx context.Context, telegramID int64, limit, offset int) ([]*models.Task, error) {
	user, err := s.repo.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTasksByUser(ctx, user.ID, limit, offset)
}
