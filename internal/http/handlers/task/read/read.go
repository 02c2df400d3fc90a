// Package read реализует HTTP-обработчик чтения задачи по ID.
// Мини-приложение опрашивает эту ручку, пока задача решается.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/zerotask/solver-bot/internal/http/response"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/storage"
)

// Service описывает интерфейс чтения задачи.
type Service interface {
	Get(ctx context.Context, id string) (*models.Task, error)
}

// Handler управляет HTTP-запросами на чтение задачи.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// TaskResponse — представление задачи в ответе API.
type TaskResponse struct {
	ID            string     `json:"id"`
	Description   string     `json:"description"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	Solution      string     `json:"solution,omitempty"`
	SolutionImage string     `json:"solution_image,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.task.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id := chi.URLParam(r, "id")
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("missing task id"))
		return
	}

	task, err := h.service.Get(r.Context(), id)
	if errors.Is(err, storage.ErrTaskNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("task not found"))
		return
	}
	if err != nil {
		log.Error("failed to read task", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read task"))
		return
	}

	// Технические детали ошибки пользователю не показываются.
	render.JSON(w, r, response.OKWithData(TaskResponse{
		ID:            task.ID,
		Description:   task.Description,
		Source:        task.Source,
		Status:        task.Status,
		Solution:      task.Solution,
		SolutionImage: task.SolutionImage,
		CreatedAt:     task.CreatedAt,
		CompletedAt:   task.CompletedAt,
	}))
}
