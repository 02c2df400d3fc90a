// Package cancelrenewal реализует HTTP-обработчик отключения
// автопродления подписки.
package cancelrenewal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/zerotask/solver-bot/internal/http/response"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/models"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
	"github.com/zerotask/solver-bot/internal/storage"
)

// UserProvider читает пользователей из хранилища.
type UserProvider interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
}

// Service отключает автопродление подписки пользователя.
type Service interface {
	CancelAutoRenewal(ctx context.Context, userID int64) error
}

// Handler управляет HTTP-запросами на отключение автопродления.
type Handler struct {
	log     *slog.Logger
	users   UserProvider
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, users UserProvider, service Service) *Handler {
	return &Handler{log: log, users: users, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancelrenewal"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegram_id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid telegram id"))
		return
	}

	user, err := h.users.GetUserByTelegramID(r.Context(), telegramID)
	if errors.Is(err, storage.ErrUserNotFound) {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("user not found"))
		return
	}
	if err != nil {
		log.Error("failed to read user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel auto renewal"))
		return
	}

	err = h.service.CancelAutoRenewal(r.Context(), user.ID)
	switch {
	case errors.Is(err, entitlement.ErrNoActiveSubscription):
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("активная подписка не найдена"))
		return
	case err != nil:
		log.Error("failed to cancel auto renewal", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not cancel auto renewal"))
		return
	}

	log.Info("auto renewal cancelled", slog.Int64("telegram_id", telegramID))
	render.JSON(w, r, response.OK())
}
