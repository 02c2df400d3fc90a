// Package paymentwebhook реализует приём уведомлений об оплате от ЮKassa.
//
// Провайдер доставляет события как минимум один раз и повторяет доставку
// при любом ответе, кроме 200. Поэтому 200 возвращается только после
// фиксации результата, а непоправимые события (битый JSON, неизвестный
// пользователь) получают 400, чтобы не зациклить повторы.
package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/zerotask/solver-bot/internal/lib/sl"
	"github.com/zerotask/solver-bot/internal/models"
	paymentsvc "github.com/zerotask/solver-bot/internal/services/payment"
)

// Service применяет событие оплаты к состоянию подписок.
type Service interface {
	Apply(ctx context.Context, event paymentsvc.Event) (*models.Subscription, error)
}

// Handler управляет HTTP-запросами webhook от платёжного провайдера.
type Handler struct {
	log           *slog.Logger
	service       Service
	webhookSecret string // Секрет для проверки подписи; пустой - подпись не проверяется
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:           log,
		service:       service,
		webhookSecret: secret,
	}
}

// Payload — тело уведомления ЮKassa.
type Payload struct {
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`     // payment ID
		Status string `json:"status"` // статус платежа
		Amount struct {
			Value    string `json:"value"`    // сумма в строке, например "290.00"
			Currency string `json:"currency"` // валюта
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"` // содержит telegram_id
	} `json:"object"`
}

// Проверка подписи webhook (X-Api-Signature)
func (h *Handler) verifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expectedSig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expectedSig), []byte(signature))
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(slog.String("op", op))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if h.webhookSecret != "" {
		signature := r.Header.Get("X-Api-Signature")
		if signature == "" || !h.verifySignature(body, signature) {
			log.Error("invalid or missing webhook signature")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to unmarshal webhook payload", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if payload.Object.ID == "" {
		log.Error("webhook payload without payment id")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	telegramID, err := strconv.ParseInt(payload.Object.Metadata["telegram_id"], 10, 64)
	if err != nil {
		log.Error("webhook payload without telegram_id in metadata", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Сумма приходит строкой; отсутствие или мусор не блокируют событие,
	// сервис подставит сумму по умолчанию.
	amount, err := strconv.ParseFloat(payload.Object.Amount.Value, 64)
	if err != nil {
		amount = 0
	}

	event := paymentsvc.Event{
		PaymentID:  payload.Object.ID,
		Status:     payload.Object.Status,
		Amount:     amount,
		Currency:   payload.Object.Amount.Currency,
		TelegramID: telegramID,
	}

	_, err = h.service.Apply(r.Context(), event)
	switch {
	case errors.Is(err, paymentsvc.ErrUnknownUser):
		log.Error("payment event for unknown user",
			slog.Int64("telegram_id", telegramID),
			slog.String("payment_id", event.PaymentID))
		w.WriteHeader(http.StatusBadRequest)
		return
	case err != nil:
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	log.Info("webhook processed successfully",
		slog.String("event", payload.Event),
		slog.String("payment_id", payload.Object.ID),
		slog.String("status", payload.Object.Status))
	w.WriteHeader(http.StatusOK)
}
