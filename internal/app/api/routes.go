// Package api предоставляет маршруты сервиса приёма задач.
package api

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/http/handlers/health"
	"github.com/zerotask/solver-bot/internal/http/handlers/payment/paymentwebhook"
	"github.com/zerotask/solver-bot/internal/http/handlers/stats"
	"github.com/zerotask/solver-bot/internal/http/handlers/subscription/cancelrenewal"
	taskcreate "github.com/zerotask/solver-bot/internal/http/handlers/task/create"
	tasklist "github.com/zerotask/solver-bot/internal/http/handlers/task/list"
	taskread "github.com/zerotask/solver-bot/internal/http/handlers/task/read"
	userread "github.com/zerotask/solver-bot/internal/http/handlers/user/read"
	"github.com/zerotask/solver-bot/internal/http/middlewarectx"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
	paymentservice "github.com/zerotask/solver-bot/internal/services/payment"
	taskservice "github.com/zerotask/solver-bot/internal/services/task"
	"github.com/zerotask/solver-bot/internal/storage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, db *storage.Storage,
	taskService *taskservice.Service, entitlementService *entitlement.Service,
	paymentService *paymentservice.Service, cfg *config.Config) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Приём задач ограничен по частоте: внешний вход для всех
		// пользователей бота.
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/tasks", taskcreate.New(logger, taskService).ServeHTTP)
		})

		r.Get("/tasks/{id}", taskread.New(logger, taskService).ServeHTTP)
		r.Get("/users/{telegram_id}", userread.New(logger, db, cfg.Billing.TrialLimit).ServeHTTP)
		r.Get("/users/{telegram_id}/tasks", tasklist.New(logger, taskService).ServeHTTP)
		r.Post("/users/{telegram_id}/subscription/cancel-renewal",
			cancelrenewal.New(logger, db, entitlementService).ServeHTTP)

		// Webhook endpoint (подпись проверяется внутри обработчика)
		r.Post("/payments/webhook",
			paymentwebhook.New(logger, paymentService, cfg.Billing.WebhookSecret).ServeHTTP)

		r.Get("/stats", stats.New(logger, db).ServeHTTP)
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
