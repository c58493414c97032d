package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
	"mailpilot/pkg/metrics"
)

// telegram rejects messages longer than 4096 characters. Formatted
// messages are bounded by their builders; cutting rendered HTML would
// break tags and entities.
const maxMessageRunes = 4000

// Bot is the part of the Telegram API the notifier uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates Bot instances.
type BotFactory func(token string, client *http.Client) (Bot, error)

var defaultBotFactory BotFactory = func(token string, client *http.Client) (Bot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// Telegram sends messages to a single chat.
type Telegram struct {
	token   string
	chatID  int64
	timeout time.Duration
	factory BotFactory
	logger  *zap.Logger

	mu  sync.Mutex
	bot Bot
}

// NewTelegram returns a Nop notifier when telegram is disabled or incomplete.
func NewTelegram(cfg config.TelegramConfig, logger *zap.Logger) Notifier {
	return NewTelegramWithFactory(cfg, defaultBotFactory, logger)
}

func NewTelegramWithFactory(cfg config.TelegramConfig, factory BotFactory, logger *zap.Logger) Notifier {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == 0 {
		logger.Info("telegram notifications disabled")
		return Nop{}
	}
	timeout := config.Seconds(cfg.TimeoutSeconds)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Telegram{
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		timeout: timeout,
		factory: factory,
		logger:  logger,
	}
}

// getBot connects on first use so a bad token does not block startup.
func (t *Telegram) getBot() (Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	bot, err := t.factory(t.token, &http.Client{Timeout: t.timeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func (t *Telegram) Send(ctx context.Context, text, format string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	bot, err := t.getBot()
	if err != nil {
		metrics.IncrementSideEffect("notification", "error")
		return err
	}

	if format == model.FormatText {
		text = Clip(text, maxMessageRunes)
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = format

	errCh := make(chan error, 1)
	go func() {
		_, err := bot.Send(msg)
		errCh <- err
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.IncrementSideEffect("notification", status)
		return fmt.Errorf("send telegram message: %w", err)
	}

	metrics.IncrementSideEffect("notification", "sent")
	t.logger.Debug("telegram message sent", zap.Int64("chat_id", t.chatID))
	return nil
}
