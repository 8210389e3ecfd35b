package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/cmdgate/internal/config"
	"github.com/nextlevelbuilder/cmdgate/internal/masker"
)

// TelegramNotifier sends approval prompts over the Telegram Bot API with
// inline approve/reject buttons. Button presses arrive at the webhook
// service as callback queries.
type TelegramNotifier struct {
	bot    *telego.Bot
	token  string
	chatID int64
}

var _ Notifier = (*TelegramNotifier)(nil)

func NewTelegramNotifier(cfg config.TelegramConfig) (*TelegramNotifier, error) {
	n := &TelegramNotifier{token: cfg.BotToken}
	if cfg.BotToken != "" {
		bot, err := telego.NewBot(cfg.BotToken, telego.WithDiscardLogger())
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		n.bot = bot
	}
	if cfg.ChatID != "" {
		id, err := strconv.ParseInt(cfg.ChatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("telegram chatId %q is not numeric: %w", cfg.ChatID, err)
		}
		n.chatID = id
	}
	return n, nil
}

func (n *TelegramNotifier) Name() string { return "Telegram" }

func (n *TelegramNotifier) ValidateConfig() error {
	if n.bot == nil {
		return fmt.Errorf("telegram.botToken is required")
	}
	if n.chatID == 0 {
		return fmt.Errorf("telegram.chatId is required")
	}
	return nil
}

func (n *TelegramNotifier) SendNotification(ctx context.Context, notif Notification) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}

	text := fmt.Sprintf("%s command approval needed\n\nCommand:\n%s\n\nReason: %s\nDirectory: %s\nRequest: %s",
		severityLabel(notif.Severity),
		truncateCommand(notif.Command, 1000),
		notif.Reason, notif.Cwd, notif.RequestID)

	msg := tu.Message(tu.ID(n.chatID), text)
	msg.ReplyMarkup = tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("✅ Approve").WithCallbackData("approve:"+notif.RequestID),
			tu.InlineKeyboardButton("❌ Reject").WithCallbackData("reject:"+notif.RequestID),
		),
	)

	if _, err := n.bot.SendMessage(ctx, msg); err != nil {
		// Bot API errors embed the request URL, which carries the token.
		return fmt.Errorf("telegram send: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return nil
}

func (n *TelegramNotifier) SendTest(ctx context.Context) error {
	if err := n.ValidateConfig(); err != nil {
		return err
	}
	msg := tu.Message(tu.ID(n.chatID), "cmdgate test message — your approval channel is working.")
	if _, err := n.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("telegram send: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return nil
}

func (n *TelegramNotifier) ProbeConnection(ctx context.Context) (string, error) {
	if n.bot == nil {
		return "", fmt.Errorf("telegram.botToken is required")
	}
	me, err := n.bot.GetMe(ctx)
	if err != nil {
		return "", fmt.Errorf("telegram getMe: %s", masker.MaskSecret(err.Error(), n.token))
	}
	return "bot @" + me.Username, nil
}
