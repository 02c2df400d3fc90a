package models

import "time"

// Статусы задачи.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskCompleted  = "completed"
	TaskFailed     = "failed"
)

// Источники задачи.
const (
	SourceText  = "text"
	SourceImage = "image"
)

// Task представляет одну пользовательскую задачу и её жизненный цикл
// от создания до готового решения. Идентификатор — UUID, выдаётся при
// создании и не переиспользуется.
type Task struct {
	ID            string     // UUID задачи
	UserID        int64      // Владелец задачи
	Description   string     // Текст условия задачи
	ImagePath     string     // Путь к фото условия (пустой для текстовых)
	Source        string     // text или image
	Status        string     // pending, processing, completed, failed
	Solution      string     // Решение в виде нумерованного списка (HTML)
	SolutionImage string     // Путь к изображению с решением
	CreatedAt     time.Time  // Дата создания
	CompletedAt   *time.Time // Дата завершения, выставляется один раз
	ErrorDetail   string     // Детали ошибки (только для failed)
}

// DummyTask используется для приёма данных из JSON-запроса на создание
// задачи, прежде чем конвертировать их в Task.
type DummyTask struct {
	TelegramID  int64  `json:"telegram_id" validate:"required"` // Telegram ID пользователя
	Username    string `json:"username"`                        // Имя пользователя (для регистрации)
	FirstName   string `json:"first_name"`                      // Имя (для регистрации)
	ChatID      int64  `json:"chat_id"`                         // Chat ID (для регистрации)
	Description string `json:"description"`                     // Текст условия
	Image       string `json:"image"`                           // Фото условия, base64
}
