// Package models содержит доменные структуры: пользователя Telegram,
// подписку и задачу, а также вспомогательные типы для работы с данными
// из внешних источников (например, JSON-запросы).
package models

import "time"

// User представляет пользователя Telegram-бота.
// TelegramID — внешний числовой идентификатор, уникальный и неизменяемый.
type User struct {
	ID               int64     // Внутренний идентификатор
	TelegramID       int64     // Telegram ID пользователя (уникальный)
	Username         string    // Имя пользователя в Telegram
	FirstName        string    // Имя
	ChatID           int64     // Chat ID для отправки сообщений
	TrialsUsed       int       // Использовано бесплатных решений
	IsActive         bool      // Активен ли пользователь
	RegistrationDate time.Time // Дата регистрации
}

// TrialsLeft возвращает количество оставшихся бесплатных решений.
// Значение всегда производное от TrialsUsed и лимита, отдельно не хранится.
func (u *User) TrialsLeft(limit int) int {
	left := limit - u.TrialsUsed
	if left < 0 {
		return 0
	}
	return left
}
