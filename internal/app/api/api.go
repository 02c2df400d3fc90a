// Package api собирает HTTP-сервис приёма задач: хранилище, кеш,
// очередь, уведомления и маршруты. Сервис принимает заявки и webhook
// оплаты; сама обработка задач идёт в отдельном воркере.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/zerotask/solver-bot/internal/cache"
	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/media"
	"github.com/zerotask/solver-bot/internal/migrations"
	"github.com/zerotask/solver-bot/internal/rabbitmq"
	"github.com/zerotask/solver-bot/internal/services/entitlement"
	"github.com/zerotask/solver-bot/internal/services/notify"
	paymentservice "github.com/zerotask/solver-bot/internal/services/payment"
	taskservice "github.com/zerotask/solver-bot/internal/services/task"
	"github.com/zerotask/solver-bot/internal/storage"
)

// App инкапсулирует HTTP-сервер и внешние соединения сервиса приёма задач.
type App struct {
	server   *http.Server
	logger   *slog.Logger
	db       *storage.Storage
	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel
	notifier *notify.Dispatcher
}

// New собирает все зависимости сервиса приёма задач.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	mediaStore, err := media.NewStore(cfg.MediaDir)
	if err != nil {
		return nil, err
	}

	amqpConn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	amqpCh, err := rabbitmq.SetupChannel(amqpConn, cfg.WorkerConcurrency, rabbitmq.GetTaskQueues())
	if err != nil {
		return nil, err
	}
	dispatcher := rabbitmq.NewDispatcher(amqpCh)

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, err
	}
	notifier := notify.New(bot, logger, cfg.Telegram, 2, 100)

	entitlementService := entitlement.New(db, logger, cfg.Billing.TrialLimit)
	taskService := taskservice.New(db, entitlementService, dispatcher, notifier,
		mediaStore, cacheRedis, logger, cfg.Billing.TrialLimit)
	paymentService := paymentservice.New(db, notifier, logger, cfg.Billing)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, db, taskService, entitlementService, paymentService, cfg)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		logger:   logger,
		db:       db,
		amqpConn: amqpConn,
		amqpCh:   amqpCh,
		notifier: notifier,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.closeResources()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.closeResources()
		return err
	}
}

func (a *App) closeResources() {
	a.notifier.Close()
	if err := a.amqpCh.Close(); err != nil {
		a.logger.Error("failed to close amqp channel", sl.Err(err))
	}
	if err := a.amqpConn.Close(); err != nil {
		a.logger.Error("failed to close amqp connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
