package infrastructure

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ukwikibot/internal/entities"
	"ukwikibot/pkg/log"
)

// TelegramPoller long-polls for updates and hands text messages to a handler.
type TelegramPoller struct {
	client  *TelegramClient
	timeout int

	// MessageHandler must not block; it is called from the polling loop.
	MessageHandler func(msg entities.Message)
}

func NewTelegramPoller(client *TelegramClient, timeout int, handler func(entities.Message)) *TelegramPoller {
	return &TelegramPoller{
		client:         client,
		timeout:        timeout,
		MessageHandler: handler,
	}
}

// Run polls until ctx is cancelled.
func (p *TelegramPoller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.timeout
	updates := p.client.Bot.GetUpdatesChan(u)

	log.Info(log.Fields{"bot": p.client.Bot.Self.UserName}, "[TelegramPoller.Run] started polling")

	for {
		select {
		case <-ctx.Done():
			p.client.Bot.StopReceivingUpdates()
			log.Info(nil, "[TelegramPoller.Run] stopped polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if msg, ok := MessageFromUpdate(update); ok && p.MessageHandler != nil {
				p.MessageHandler(msg)
			}
		}
	}
}

// MessageFromUpdate extracts a text message. Updates without text are skipped.
func MessageFromUpdate(update tgbotapi.Update) (entities.Message, bool) {
	m := update.Message
	if m == nil || m.Text == "" || m.Chat == nil {
		return entities.Message{}, false
	}

	msg := entities.Message{
		ID:         strconv.Itoa(m.MessageID),
		ChatID:     strconv.FormatInt(m.Chat.ID, 10),
		Content:    m.Text,
		Platform:   entities.PlatformTelegram,
		ReceivedAt: m.Time(),
	}
	if m.From != nil {
		msg.From = m.From.UserName
	}
	return msg, true
}
