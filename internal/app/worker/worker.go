// Package worker собирает фоновый обработчик задач: потребитель очереди,
// конвейер решения, клиент OpenAI и отправка уведомлений.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/streadway/amqp"

	"github.com/zerotask/solver-bot/internal/cache"
	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/media"
	"github.com/zerotask/solver-bot/internal/rabbitmq"
	"github.com/zerotask/solver-bot/internal/services/notify"
	"github.com/zerotask/solver-bot/internal/services/pipeline"
	"github.com/zerotask/solver-bot/internal/solver"
	"github.com/zerotask/solver-bot/internal/storage"
)

// App инкапсулирует зависимости фонового обработчика задач.
type App struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	db          *storage.Storage
	pipeline    *pipeline.Service
	notifier    *notify.Dispatcher
	logger      *slog.Logger
	concurrency int
}

// New собирает все зависимости воркера.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
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

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.WorkerConcurrency, rabbitmq.GetTaskQueues())
	if err != nil {
		conn.Close()
		return nil, err
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		conn.Close()
		return nil, err
	}
	notifier := notify.New(bot, logger, cfg.Telegram, 2, 100)

	solverClient := solver.New(cfg.OpenAI)
	pipelineService := pipeline.New(db, solverClient, mediaStore, notifier, cacheRedis, logger,
		pipeline.RetryPolicy{
			MaxAttempts:       cfg.MaxAttempts,
			BaseDelay:         cfg.BaseDelay,
			BackoffMultiplier: cfg.BackoffMultiplier,
		})

	return &App{
		conn:        conn,
		ch:          ch,
		db:          db,
		pipeline:    pipelineService,
		notifier:    notifier,
		logger:      logger,
		concurrency: cfg.WorkerConcurrency,
	}, nil
}

// Run запускает потребление очереди задач до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.TasksQueue, a.concurrency, func(body []byte) error {
		var msg rabbitmq.TaskMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			// Нечитаемое сообщение нет смысла возвращать в очередь.
			a.logger.Error("failed to unmarshal task message", sl.Err(err))
			return nil
		}
		if msg.TaskID == "" {
			a.logger.Error("task message without task_id")
			return nil
		}
		return a.pipeline.Run(ctx, msg.TaskID)
	})
	if err != nil {
		a.logger.Error("failed to start tasks consumer", sl.Err(err))
		return fmt.Errorf("worker: %w", err)
	}
	a.logger.Info("worker started", slog.String("queue", rabbitmq.TasksQueue),
		slog.Int("concurrency", a.concurrency))

	<-ctx.Done()
	a.logger.Info("worker shutting down gracefully")

	a.notifier.Close()
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.DB.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
	return nil
}
