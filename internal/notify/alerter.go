package notify

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// TelegramAlerter шлёт операторские алерты в Telegram-чаты.
type TelegramAlerter struct {
	api   *tgbotapi.BotAPI
	chats []int64
}

// NewTelegramAlerter создаёт алертер для списка чатов.
func NewTelegramAlerter(api *tgbotapi.BotAPI, chats []int64) *TelegramAlerter {
	return &TelegramAlerter{api: api, chats: chats}
}

// Alert отправляет текст во все настроенные чаты.
// Ошибка доставки логируется и не прерывает вызывающую операцию.
func (a *TelegramAlerter) Alert(_ context.Context, text string) {
	for _, chatID := range a.chats {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := a.api.Send(msg); err != nil {
			log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки алерта")
		}
	}
}

// NoopAlerter — заглушка для окружений без Telegram-бота.
type NoopAlerter struct{}

func (NoopAlerter) Alert(context.Context, string) {}
