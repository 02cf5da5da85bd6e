// Package alert reports operational failures to an admin Telegram chat.
package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	title = "Newspaper alert"

	// Telegram rejects messages longer than 4096 characters; leave room for
	// the header and escaping.
	maxTextRunes = 3500
)

var ErrNotConfigured = errors.New("telegram alerts are not configured")

type Telegram struct {
	bot    *bot.Bot
	chatID int64
	log    *slog.Logger
}

// NewTelegram returns an alerter bound to the admin chat. Extra options are
// passed to the bot client.
func NewTelegram(token string, chatID int64, log *slog.Logger, opts ...bot.Option) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || chatID == 0 {
		return nil, ErrNotConfigured
	}

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &Telegram{bot: b, chatID: chatID, log: log}, nil
}

// Alert sends text to the admin chat. Delivery failures are only logged.
// A nil alerter does nothing.
func (t *Telegram) Alert(ctx context.Context, text string) {
	if t == nil {
		return
	}

	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    t.chatID,
		Text:      formatAlert(text),
		ParseMode: models.ParseModeMarkdown,
	})
	if err != nil {
		t.log.ErrorContext(ctx, "Failed to send alert",
			"error", err,
			"chatID", t.chatID)
	}
}

func formatAlert(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}

	return "*" + escapeMarkdownV2(title) + "*\n\n" + escapeMarkdownV2(truncateRunes(text, maxTextRunes))
}
