// Package read реализует HTTP-обработчик профиля пользователя:
// остаток бесплатных решений и наличие действующей подписки.
// Остаток всегда вычисляется из trials_used, отдельно не хранится.
package read

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
	"github.com/zerotask/solver-bot/internal/storage"
)

// UserProvider читает пользователей и их подписки из хранилища.
type UserProvider interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	HasCurrentSubscription(ctx context.Context, userID int64) (bool, error)
}

// Handler управляет HTTP-запросами на чтение профиля.
type Handler struct {
	log        *slog.Logger
	users      UserProvider
	trialLimit int
}

// New создает новый Handler.
func New(log *slog.Logger, users UserProvider, trialLimit int) *Handler {
	return &Handler{log: log, users: users, trialLimit: trialLimit}
}

// ProfileResponse — представление профиля в ответе API.
type ProfileResponse struct {
	TelegramID      int64  `json:"telegram_id"`
	Username        string `json:"username"`
	FirstName       string `json:"first_name"`
	TrialsUsed      int    `json:"trials_used"`
	TrialsLeft      int    `json:"trials_left"`
	HasSubscription bool   `json:"has_subscription"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.read"
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
		render.JSON(w, r, response.Error("could not read user"))
		return
	}

	hasSubscription, err := h.users.HasCurrentSubscription(r.Context(), user.ID)
	if err != nil {
		log.Error("failed to check subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not read user"))
		return
	}

	render.JSON(w, r, response.OKWithData(ProfileResponse{
		TelegramID:      user.TelegramID,
		Username:        user.Username,
		FirstName:       user.FirstName,
		TrialsUsed:      user.TrialsUsed,
		TrialsLeft:      user.TrialsLeft(h.trialLimit),
		HasSubscription: hasSubscription,
	}))
}
