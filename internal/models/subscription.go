package models

import "time"

// Статусы подписки.
const (
	SubscriptionActive    = "active"
	SubscriptionExpired   = "expired"
	SubscriptionCancelled = "cancelled"
)

// Subscription представляет оплаченную подписку пользователя.
// PaymentID — внешний идентификатор платежа, используется как ключ
// идемпотентности: пара (user_id, payment_id) уникальна в хранилище.
type Subscription struct {
	ID            int64     // Внутренний идентификатор
	UserID        int64     // Владелец подписки
	StartDate     time.Time // Дата начала
	EndDate       time.Time // Дата окончания
	Status        string    // active, expired или cancelled
	AutoRenewal   bool      // Автопродление
	PaymentID     string    // Внешний ID платежа (ключ идемпотентности)
	Amount        float64   // Сумма платежа
	Currency      string    // Валюта платежа
	PaymentMethod string    // Способ оплаты
	CreatedAt     time.Time // Дата создания записи
}

// IsCurrent сообщает, действует ли подписка в данный момент.
// Право на безлимит всегда вычисляется заново, а не хранится.
func (s *Subscription) IsCurrent(now time.Time) bool {
	return s.Status == SubscriptionActive && s.EndDate.After(now)
}
