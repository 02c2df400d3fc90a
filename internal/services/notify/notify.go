// Package notify реализует диспетчер уведомлений. Доставка всегда
// best-effort: одна попытка, ошибки только логируются и никогда не
// поднимаются к вызывающему. Отправка выполняется пулом воркеров,
// поэтому медленный Telegram не блокирует ни конвейер, ни webhook.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/zerotask/solver-bot/internal/config"
	"github.com/zerotask/solver-bot/internal/lib/markup"
	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/metrics"
	"github.com/zerotask/solver-bot/internal/models"
)

// Ограничение длины решения в сообщении для канала.
const broadcastSolutionLimit = 500

// Sender отправляет сообщение в Telegram. Интерфейс совпадает с
// методом Send из tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Dispatcher рассылает уведомления пользователям и в канал.
type Dispatcher struct {
	sender    Sender
	log       *slog.Logger
	channelID int64
	webAppURL string
	jobs      chan tgbotapi.Chattable
	wg        sync.WaitGroup
}

// New создает Dispatcher и запускает пул воркеров отправки.
func New(sender Sender, log *slog.Logger, cfg config.Telegram, workers, queueSize int) *Dispatcher {
	d := &Dispatcher{
		sender:    sender,
		log:       log,
		channelID: cfg.ChannelID,
		webAppURL: cfg.WebAppURL,
		jobs:      make(chan tgbotapi.Chattable, queueSize),
	}
	d.wg.Add(workers)
	for range workers {
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.jobs {
		if _, err := d.sender.Send(msg); err != nil {
			d.log.Error("notification delivery failed", sl.Err(err))
			metrics.NotificationsSent.WithLabelValues("error").Inc()
			continue
		}
		metrics.NotificationsSent.WithLabelValues("ok").Inc()
	}
}

// Close останавливает пул после отправки уже принятых сообщений.
func (d *Dispatcher) Close() {
	close(d.jobs)
	d.wg.Wait()
}

// dispatch ставит сообщение в очередь отправки, не блокируя вызывающего.
// При переполнении очереди сообщение отбрасывается с записью в лог.
func (d *Dispatcher) dispatch(msg tgbotapi.Chattable) {
	select {
	case d.jobs <- msg:
	default:
		d.log.Error("notification queue is full, dropping message")
		metrics.NotificationsSent.WithLabelValues("dropped").Inc()
	}
}

func chatID(user *models.User) int64 {
	if user.ChatID != 0 {
		return user.ChatID
	}
	return user.TelegramID
}

func (d *Dispatcher) solutionURL(taskID string) string {
	return fmt.Sprintf("%s?task_id=%s", d.webAppURL, taskID)
}

// TaskReceived сообщает пользователю, что задача принята в обработку.
func (d *Dispatcher) TaskReceived(user *models.User) {
	msg := tgbotapi.NewMessage(chatID(user), "📝 Задача получена!\n\n⏳ Обрабатываем вашу задачу...")
	d.dispatch(msg)
}

// TaskCompleted сообщает пользователю о готовом решении и публикует
// анонс в канал.
func (d *Dispatcher) TaskCompleted(user *models.User, task *models.Task) {
	msg := tgbotapi.NewMessage(chatID(user), "✅ Задача решена!\n\n📱 Посмотрите решение в мини-приложении")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("👀 Посмотреть решение", d.solutionURL(task.ID)),
		),
	)
	d.dispatch(msg)

	if d.channelID != 0 {
		d.dispatch(d.broadcastMessage(user, task))
	}
}

// broadcastMessage собирает анонс решённой задачи для публичного канала:
// теги списка убираются, решение усечено, спецсимволы экранированы.
func (d *Dispatcher) broadcastMessage(user *models.User, task *models.Task) tgbotapi.Chattable {
	username := user.Username
	if username == "" {
		username = "Аноним"
	}

	safeDescription := markup.EscapeMarkdown(markup.Truncate(task.Description, 100))
	safeSolution := markup.EscapeMarkdown(markup.Truncate(markup.StripListTags(task.Solution), broadcastSolutionLimit))
	safeUsername := markup.EscapeMarkdown(username)
	safeURL := markup.EscapeMarkdown(d.solutionURL(task.ID))

	text := fmt.Sprintf("🎯 *Новая решенная задача\\!*\n\n"+
		"📝 *Задача:* %s\n\n"+
		"✅ *Решение готово\\!*\n\n%s\n\n"+
		"👤 *Пользователь:* @%s\n"+
		"📱 *Посмотреть полное решение:* %s",
		safeDescription, safeSolution, safeUsername, safeURL)

	msg := tgbotapi.NewMessage(d.channelID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	return msg
}

// TaskFailed сообщает пользователю о неудаче коротким сообщением без
// технических деталей: error_detail остаётся только в логах и базе.
func (d *Dispatcher) TaskFailed(user *models.User, task *models.Task) {
	msg := tgbotapi.NewMessage(chatID(user), "😔 Не получилось решить задачу.\n\nПопробуйте отправить её ещё раз чуть позже.")
	d.dispatch(msg)
}

// PaymentSucceeded сообщает пользователю об успешной оплате подписки.
func (d *Dispatcher) PaymentSucceeded(user *models.User) {
	msg := tgbotapi.NewMessage(chatID(user), "✅ Подписка успешно оформлена!\n\nТеперь тебе доступен безлимит на решения задач на 30 дней.")
	d.dispatch(msg)
}

// PaymentFailed сообщает пользователю о неуспешной оплате и предлагает
// повторить платёж.
func (d *Dispatcher) PaymentFailed(user *models.User, paymentID string) {
	msg := tgbotapi.NewMessage(chatID(user), "⚠️ Сложности с оплатой.\n\nПопробуйте ещё раз или выберите другой способ.")
	retryURL := "https://yoomoney.ru/checkout/payments/v2/contract?orderId=" + paymentID
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("💳 Повторить оплату", retryURL),
		),
	)
	d.dispatch(msg)
}
