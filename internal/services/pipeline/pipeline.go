// Package pipeline реализует конвейер обработки задачи: извлечение
// текста из фото, генерация решения, рендеринг картинки и уведомление
// пользователя. Конвейер — конечный автомат задачи: pending → processing
// → completed | failed. Неудачный прогон повторяется по явной политике
// с экспоненциальной задержкой; после исчерпания попыток задача
// остаётся в failed.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/metrics"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/render"
)

// RetryPolicy — явная политика повторов прогона конвейера.
type RetryPolicy struct {
	MaxAttempts       int           // Максимум попыток на одну задачу
	BaseDelay         time.Duration // Задержка перед второй попыткой
	BackoffMultiplier int           // Множитель задержки между попытками
}

// Delay возвращает задержку перед повтором после попытки attempt
// (нумерация с нуля): base * multiplier^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	for range attempt {
		delay *= time.Duration(p.BackoffMultiplier)
	}
	return delay
}

// TaskRepository определяет методы хранилища, нужные конвейеру.
type TaskRepository interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
	MarkTaskProcessing(ctx context.Context, id string) error
	RecordTaskWarning(ctx context.Context, id string, detail string) error
	UpdateTaskDescription(ctx context.Context, id string, description string) error
	CompleteTask(ctx context.Context, id, solution, solutionImage string) error
	FailTask(ctx context.Context, id, errorDetail string) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Solver — внешний сервис извлечения текста и генерации решений.
type Solver interface {
	ExtractText(ctx context.Context, imageBytes []byte) (string, error)
	GenerateSolution(ctx context.Context, taskText string) (string, error)
}

// MediaStore — хранилище изображений условий и решений.
type MediaStore interface {
	LoadImage(path string) ([]byte, error)
	SaveSolutionImage(taskID string, data []byte) (string, error)
}

// Notifier уведомляет пользователя об итоге обработки.
type Notifier interface {
	TaskCompleted(user *models.User, task *models.Task)
	TaskFailed(user *models.User, task *models.Task)
}

// Cache инвалидируется при смене статуса задачи, чтобы опрос статуса
// из мини-приложения не читал устаревшие данные.
type Cache interface {
	Invalidate(key string) error
}

// Service выполняет прогоны конвейера.
type Service struct {
	repo     TaskRepository
	solver   Solver
	media    MediaStore
	notifier Notifier
	cache    Cache
	log      *slog.Logger
	policy   RetryPolicy
}

// New создает новый Service.
func New(repo TaskRepository, solver Solver, media MediaStore, notifier Notifier,
	cache Cache, log *slog.Logger, policy RetryPolicy) *Service {
	return &Service{
		repo:     repo,
		solver:   solver,
		media:    media,
		notifier: notifier,
		cache:    cache,
		log:      log,
		policy:   policy,
	}
}

// Run выполняет обработку задачи с повторами по политике.
// Возврат ошибки означает инфраструктурный сбой (сообщение вернётся в
// очередь); деловые исходы, включая окончательный failed, завершаются
// без ошибки.
func (s *Service) Run(ctx context.Context, taskID string) error {
	const op = "pipeline.Run"
	log := s.log.With(slog.String("op", op), slog.String("task_id", taskID))

	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Повторная доставка для уже обработанной задачи: второй прогон не
	// запускается. processing допустим — это переживший рестарт прогон.
	if task.Status != models.TaskPending && task.Status != models.TaskProcessing {
		log.Info("task already settled, skipping", slog.String("status", task.Status))
		return nil
	}

	// Пустая задача не доходит до processing: немедленный failed без
	// обращений к внешним сервисам и без повторов.
	if task.Description == "" && task.ImagePath == "" {
		if err := s.repo.FailTask(ctx, task.ID, "validation: task has no description and no image"); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		task.Status = models.TaskFailed
		s.invalidate(task.ID)
		metrics.TasksProcessed.WithLabelValues(models.TaskFailed).Inc()
		s.notifyFailed(ctx, task)
		return nil
	}

	for attempt := 0; ; attempt++ {
		runErr := s.runAttempt(ctx, task)
		if runErr == nil {
			log.Info("task completed", slog.Int("attempt", attempt+1))
			metrics.TasksProcessed.WithLabelValues(models.TaskCompleted).Inc()
			s.notifyCompleted(ctx, task)
			return nil
		}

		log.Error("pipeline attempt failed", slog.Int("attempt", attempt+1), sl.Err(runErr))
		if err := s.repo.FailTask(ctx, task.ID, runErr.Error()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		task.Status = models.TaskFailed
		task.ErrorDetail = runErr.Error()
		s.invalidate(task.ID)

		if attempt+1 >= s.policy.MaxAttempts {
			log.Error("retry budget exhausted, task stays failed")
			metrics.TasksProcessed.WithLabelValues(models.TaskFailed).Inc()
			s.notifyFailed(ctx, task)
			return nil
		}

		metrics.PipelineRetries.Inc()
		select {
		case <-time.After(s.policy.Delay(attempt)):
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
	}
}

// runAttempt — один прогон конечного автомата: каждый повтор заходит
// через свежий шаг processing, терминальные записи не мутируются.
func (s *Service) runAttempt(ctx context.Context, task *models.Task) error {
	if err := s.repo.MarkTaskProcessing(ctx, task.ID); err != nil {
		return err
	}
	task.Status = models.TaskProcessing
	s.invalidate(task.ID)

	if task.Source == models.SourceImage && task.ImagePath != "" {
		if err := s.extractFromImage(ctx, task); err != nil {
			return err
		}
	}

	solution, err := s.solver.GenerateSolution(ctx, task.Description)
	if err != nil {
		return fmt.Errorf("generate solution: %w", err)
	}
	task.Solution = solution

	// Картинка решения — best-effort: при ошибке поле остаётся пустым.
	solutionImage := ""
	if data, err := render.SolutionImage(solution); err != nil {
		s.log.Error("failed to render solution image", sl.Err(err))
	} else if path, err := s.media.SaveSolutionImage(task.ID, data); err != nil {
		s.log.Error("failed to save solution image", sl.Err(err))
	} else {
		solutionImage = path
	}
	task.SolutionImage = solutionImage

	if err := s.repo.CompleteTask(ctx, task.ID, solution, solutionImage); err != nil {
		return err
	}
	task.Status = models.TaskCompleted
	s.invalidate(task.ID)
	return nil
}

// extractFromImage извлекает текст условия из фото. Нечитаемое
// изображение — не повод прерывать обработку: задача деградирует до
// текстовой, а причина фиксируется в error_detail.
func (s *Service) extractFromImage(ctx context.Context, task *models.Task) error {
	imageBytes, err := s.media.LoadImage(task.ImagePath)
	if err != nil {
		s.log.Error("failed to load task image, falling back to text",
			slog.String("task_id", task.ID), sl.Err(err))
		if recErr := s.repo.RecordTaskWarning(ctx, task.ID, fmt.Sprintf("image decode failed: %v", err)); recErr != nil {
			return recErr
		}
		return nil
	}

	text, err := s.solver.ExtractText(ctx, imageBytes)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if err := s.repo.UpdateTaskDescription(ctx, task.ID, text); err != nil {
		return err
	}
	task.Description = text
	return nil
}

func (s *Service) invalidate(taskID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate("task:" + taskID); err != nil {
		s.log.Warn("failed to invalidate task cache", slog.String("task_id", taskID), sl.Err(err))
	}
}

func (s *Service) notifyCompleted(ctx context.Context, task *models.Task) {
	user, err := s.repo.GetUserByID(ctx, task.UserID)
	if err != nil {
		s.log.Error("failed to load task owner for notification", sl.Err(err))
		return
	}
	s.notifier.TaskCompleted(user, task)
}

func (s *Service) notifyFailed(ctx context.Context, task *models.Task) {
	user, err := s.repo.GetUserByID(ctx, task.UserID)
	if err != nil {
		s.log.Error("failed to load task owner for notification", sl.Err(err))
		return
	}
	s.notifier.TaskFailed(user, task)
}
