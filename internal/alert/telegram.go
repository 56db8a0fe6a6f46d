package alert

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"go.uber.org/zap"
)

const defaultSendTimeout = 6 * time.Second

type TelegramConfig struct {
	Token     string
	ChatID    string
	ServerURL string // пусто = api.telegram.org
	Timeout   time.Duration
}

// Telegram sends alerts to one chat. Send errors are logged and dropped.
type Telegram struct {
	bot     *tgbot.Bot
	chatID  any
	timeout time.Duration
	log     *zap.Logger
}

func NewTelegram(cfg TelegramConfig, log *zap.Logger) (*Telegram, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := []tgbot.Option{tgbot.WithSkipGetMe()}
	if cfg.ServerURL != "" {
		opts = append(opts, tgbot.WithServerURL(cfg.ServerURL))
	}
	b, err := tgbot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	return &Telegram{
		bot:     b,
		chatID:  parseChatID(cfg.ChatID),
		timeout: timeout,
		log:     log.Named("telegram"),
	}, nil
}

// parseChatID: числовой id или @username канала.
func parseChatID(raw string) any {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	return raw
}

func (t *Telegram) Send(ctx context.Context, text string) {
	cctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	_, err := t.bot.SendMessage(cctx, &tgbot.SendMessageParams{
		ChatID: t.chatID,
		Text:   text,
	})
	if err != nil {
		t.log.Warn("send alert failed", zap.Error(err))
	}
}

// New picks the telegram sender when both credentials are present and Noop otherwise.
func New(cfg TelegramConfig, log *zap.Logger) Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Token) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		log.Info("telegram not configured, alerts disabled")
		return Noop{}
	}
	t, err := NewTelegram(cfg, log)
	if err != nil {
		log.Warn("telegram unavailable, alerts disabled", zap.Error(err))
		return Noop{}
	}
	return t
}
