// Package create реализует HTTP-обработчик приёма новой задачи.
//
// Handler принимает JSON-запрос с условием задачи (текст и/или фото в
// base64), валидирует его и передаёт сервису приёма задач. Ответ
// содержит ID созданной задачи; обработка идёт в фоне.
package create

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/zerotask/solver-bot/internal/http/response"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
	tasksvc "github.com/zerotask/solver-bot/internal/services/task"
	"github.com/zerotask/solver-bot/internal/storage"
)

// Service описывает интерфейс бизнес-логики приёма задачи.
type Service interface {
	Submit(ctx context.Context, req models.DummyTask) (string, error)
}

// Handler управляет HTTP-запросами на создание задач.
type Handler struct {
	log      *slog.Logger        // Логгер для записи информации и ошибок
	service  Service             // Сервис приёма задач
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.task.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyTask
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	taskID, err := h.service.Submit(r.Context(), req)
	switch {
	case errors.Is(err, tasksvc.ErrEmptyTask):
		log.Error("empty task submitted")
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("задача должна содержать текст или фото"))
		return
	case errors.Is(err, entitlement.ErrTrialExhausted), errors.Is(err, storage.ErrTrialExhausted):
		log.Info("trial exhausted, subscription required")
		w.WriteHeader(http.StatusForbidden)
		render.JSON(w, r, response.Error("бесплатные решения закончились, оформите подписку"))
		return
	case err != nil:
		log.Error("failed to submit task", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create task"))
		return
	}

	log.Info("task created", slog.String("task_id", taskID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"task_id": taskID,
	}))
}
