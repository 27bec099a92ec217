package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ukwikibot/internal/entities"
	"ukwikibot/internal/interfaces"
	"ukwikibot/pkg/log"
)

var _ interfaces.Gateway = (*TelegramClient)(nil)

var commandDescriptions = map[string]string{
	"help":   "Довідка та приклади запитів",
	"start":  "Почати роботу з ботом",
	"random": "Випадкова стаття",
	"wiki":   "Посилання на Вікіпедію",
}

type TelegramClient struct {
	Bot *tgbotapi.BotAPI
}

func NewTelegramClient(token string, debug bool) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	bot.Debug = debug
	return &TelegramClient{Bot: bot}, nil
}

// NewTelegramClientWithEndpoint targets a custom Bot API endpoint
// ("https://host/bot%s/%s").
func NewTelegramClientWithEndpoint(token, endpoint string, httpClient *http.Client) (*TelegramClient, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect telegram bot: %w", err)
	}
	return &TelegramClient{Bot: bot}, nil
}

// RegisterCommands publishes the command menu shown by Telegram clients.
func (t *TelegramClient) RegisterCommands(commands []string) error {
	botCommands := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		description := commandDescriptions[c]
		if description == "" {
			description = c
		}
		botCommands = append(botCommands, tgbotapi.BotCommand{Command: c, Description: description})
	}
	if _, err := t.Bot.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		return fmt.Errorf("set commands: %w", err)
	}
	return nil
}

func (t *TelegramClient) sendHTML(chatID int64, content string, noPreview bool) error {
	msg := tgbotapi.NewMessage(chatID, content)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = noPreview
	_, err := t.Bot.Send(msg)
	return err
}

// Deliver sends text as HTML messages, coordinates as a location share and
// images as a photo followed by the caption without link previews.
func (t *TelegramClient) Deliver(ctx context.Context, to string, resp entities.Response) error {
	if resp.Empty() {
		return nil
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", to, err)
	}

	for _, item := range resp.Items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.deliverItem(chatID, item); err != nil {
			return fmt.Errorf("deliver %s item: %w", item.Kind, err)
		}
		log.WithRequestID(ctx).WithFields(log.Fields{
			"chat_id": chatID,
			"kind":    item.Kind,
		}).Debug("[TelegramClient.Deliver] item sent")
	}
	return nil
}

func (t *TelegramClient) deliverItem(chatID int64, item entities.ResponseItem) error {
	switch item.Kind {
	case entities.KindText:
		return t.sendHTML(chatID, item.Text, false)
	case entities.KindCoordinates:
		_, err := t.Bot.Send(tgbotapi.NewLocation(chatID, item.Latitude, item.Longitude))
		return err
	case entities.KindImage:
		if len(item.Image) > 0 {
			photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.jpg", Bytes: item.Image})
			if _, err := t.Bot.Send(photo); err != nil {
				return err
			}
		}
		if item.Caption != "" {
			return t.sendHTML(chatID, item.Caption, true)
		}
		return nil
	default:
		return fmt.Errorf("unknown item kind %q", item.Kind)
	}
}
