// Package stats реализует HTTP-обработчик сводной статистики сервиса.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/zerotask/solver-bot/internal/http/response"
	"github.com/zerotask/solver-bot/internal/lib/sl"
)

// Provider читает агрегаты из хранилища.
type Provider interface {
	CountUsers(ctx context.Context) (total, active int, err error)
	CountTasks(ctx context.Context) (total, completed, failed int, err error)
	CountSubscriptions(ctx context.Context) (total, active int, err error)
}

// Handler управляет HTTP-запросами на чтение статистики.
type Handler struct {
	log      *slog.Logger
	provider Provider
}

// New создает новый Handler.
func New(log *slog.Logger, provider Provider) *Handler {
	return &Handler{log: log, provider: provider}
}

// StatsResponse — сводная статистика сервиса.
type StatsResponse struct {
	Users               int `json:"users"`
	ActiveUsers         int `json:"active_users"`
	TasksTotal          int `json:"tasks_total"`
	TasksCompleted      int `json:"tasks_completed"`
	TasksFailed         int `json:"tasks_failed"`
	SubscriptionsTotal  int `json:"subscriptions_total"`
	ActiveSubscriptions int `json:"active_subscriptions"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users, activeUsers, err := h.provider.CountUsers(r.Context())
	if err != nil {
		log.Error("failed to count users", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read stats"))
		return
	}

	total, completed, failed, err := h.provider.CountTasks(r.Context())
	if err != nil {
		log.Error("failed to count tasks", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read stats"))
		return
	}

	subsTotal, subsActive, err := h.provider.CountSubscriptions(r.Context())
	if err != nil {
		log.Error("failed to count subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read stats"))
		return
	}

	render.JSON(w, r, response.OKWithData(StatsResponse{
		Users:               users,
		ActiveUsers:         activeUsers,
		TasksTotal:          total,
		TasksCompleted:      completed,
		TasksFailed:         failed,
		SubscriptionsTotal:  subsTotal,
		ActiveSubscriptions: subsActive,
	}))
}
