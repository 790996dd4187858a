// Package notify delivers messages and report files to users through the
// Telegram bot.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/smart-finance/internal/identity"
	"github.com/dvloznov/smart-finance/internal/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends text and files to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, name string, data []byte) error
}

// sender is the part of tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends through a bot.
type Telegram struct {
	bot sender
}

// NewTelegram authenticates the bot token against the Bot API.
func NewTelegram(token string) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("NewTelegram: %w", err)
	}
	bot.Debug = false
	return &Telegram{bot: bot}, nil
}

// SendText implements Notifier.
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string) error {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("SendText: chat %d: %w", chatID, err)
	}
	return nil
}

// SendDocument implements Notifier.
func (t *Telegram) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("SendDocument: chat %d: %w", chatID, err)
	}
	return nil
}

// Noop drops every message. Used when no bot token is configured.
type Noop struct{}

// SendText implements Notifier.
func (Noop) SendText(ctx context.Context, chatID int64, text string) error {
	log := logger.FromContext(ctx)
	log.Debug().Int64("chat_id", chatID).Msg("Notification dropped, bot not configured")
	return nil
}

// SendDocument implements Notifier.
func (Noop) SendDocument(ctx context.Context, chatID int64, name string, data []byte) error {
	log := logger.FromContext(ctx)
	log.Debug().Int64("chat_id", chatID).Str("file", name).Msg("Document dropped, bot not configured")
	return nil
}

// ChatID returns the private chat of a store identity such as "tg_42".
func ChatID(user string) (int64, error) {
	if !strings.HasPrefix(user, identity.UserPrefix) {
		return 0, fmt.Errorf("ChatID: %q is not a Telegram user", user)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(user, identity.UserPrefix), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ChatID: %q: %w", user, err)
	}
	return id, nil
}
