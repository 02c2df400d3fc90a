package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zerotask/solver-bot/internal/models"
)

// CreateTask вставляет новую задачу в статусе pending.
// Используется для пользователей с активной подпиской: списания
// пробного решения не происходит.
func (s *Storage) CreateTask(ctx context.Context, task models.Task) error {
	const op = "storage.CreateTask"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO tasks (id, user_id, description, image_path, source, status)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.DB.ExecContext(ctx, query,
		task.ID, task.UserID, task.Description, task.ImagePath, task.Source, models.TaskPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreateTaskConsumingTrial атомарно списывает одно бесплатное решение и
// создаёт задачу. Инкремент trials_used и вставка задачи выполняются в
// одной транзакции: если лимит уже исчерпан, откатывается всё и
// возвращается ErrTrialExhausted.
func (s *Storage) CreateTaskConsumingTrial(ctx context.Context, task models.Task, trialLimit int) error {
	const op = "storage.CreateTaskConsumingTrial"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Условный инкремент: строка обновится только пока лимит не достигнут,
	// конкурирующая транзакция увидит уже увеличенное значение.
	result, err := tx.ExecContext(ctx,
		`UPDATE users SET trials_used = trials_used + 1
		 WHERE id = $1 AND trials_used < $2`,
		task.UserID, trialLimit)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrTrialExhausted)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, description, image_path, source, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		task.ID, task.UserID, task.Description, task.ImagePath, task.Source, models.TaskPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetTask возвращает задачу по её ID.
func (s *Storage) GetTask(ctx context.Context, id string) (*models.Task, error) {
	const op = "storage.GetTask"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, description, image_path, source, status,
			      solution, solution_image, created_at, completed_at, error_detail
			  FROM tasks WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)

	var result models.Task
	err := row.Scan(&result.ID, &result.UserID, &result.Description, &result.ImagePath,
		&result.Source, &result.Status, &result.Solution, &result.SolutionImage,
		&result.CreatedAt, &result.CompletedAt, &result.ErrorDetail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrTaskNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}

// ListTasksByUser возвращает задачи пользователя, новые первыми.
func (s *Storage) ListTasksByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Task, error) {
	const op = "storage.ListTasksByUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, description, image_path, source, status,
			      solution, solution_image, created_at, completed_at, error_detail
			  FROM tasks
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.Task
	for rows.Next() {
		var item models.Task
		if err := rows.Scan(&item.ID, &item.UserID, &item.Description, &item.ImagePath,
			&item.Source, &item.Status, &item.Solution, &item.SolutionImage,
			&item.CreatedAt, &item.CompletedAt, &item.ErrorDetail); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkTaskProcessing переводит задачу в статус processing и возвращает
// обновлённое описание задачи после перевода.
func (s *Storage) MarkTaskProcessing(ctx context.Context, id string) error {
	const op = "storage.MarkTaskProcessing"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tasks SET status = $2, error_detail = '' WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id, models.TaskProcessing)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrTaskNotFound)
	}
	return nil
}

// RecordTaskWarning сохраняет деталь сбоя, не меняя статус задачи.
// Используется при деградации: изображение не удалось декодировать,
// но задача продолжает обрабатываться как текстовая.
func (s *Storage) RecordTaskWarning(ctx context.Context, id string, detail string) error {
	const op = "storage.RecordTaskWarning"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tasks SET error_detail = $2 WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id, detail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdateTaskDescription сохраняет текст, извлечённый из изображения.
func (s *Storage) UpdateTaskDescription(ctx context.Context, id string, description string) error {
	const op = "storage.UpdateTaskDescription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tasks SET description = $2 WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id, description); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompleteTask переводит задачу в статус completed и сохраняет решение.
// completed_at выставляется ровно один раз: повторный вызов для уже
// завершённой задачи не сдвигает дату завершения.
func (s *Storage) CompleteTask(ctx context.Context, id, solution, solutionImage string) error {
	const op = "storage.CompleteTask"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tasks
			  SET status = $2, solution = $3, solution_image = $4,
			      completed_at = COALESCE(completed_at, now())
			  WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id, models.TaskCompleted, solution, solutionImage); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FailTask переводит задачу в статус failed и сохраняет детали ошибки.
func (s *Storage) FailTask(ctx context.Context, id, errorDetail string) error {
	const op = "storage.FailTask"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE tasks SET status = $2, error_detail = $3 WHERE id = $1`
	if _, err := s.DB.ExecContext(ctx, query, id, models.TaskFailed, errorDetail); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CountTasks возвращает общее число задач, число завершённых и число
// окончательно проваленных.
func (s *Storage) CountTasks(ctx context.Context) (total, completed, failed int, err error) {
	const op = "storage.CountTasks"
	select {
	case <-ctx.Done():
		return 0, 0, 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*),
			      COUNT(*) FILTER (WHERE status = $1),
			      COUNT(*) FILTER (WHERE status = $2)
			  FROM tasks`
	if err := s.DB.QueryRowContext(ctx, query, models.TaskCompleted, models.TaskFailed).
		Scan(&total, &completed, &failed); err != nil {
		return 0, 0, 0, fmt.Errorf("%s: %w", op, err)
	}
	return total, completed, failed, nil
}
